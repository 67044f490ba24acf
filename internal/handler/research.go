package handler

import (
    "bytes"
    "context"
    "errors"
    "io"
    "net/http"
    "strings"
    "time"

    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/stuffworth/internal/imaging"
    "github.com/iliyamo/stuffworth/internal/middleware"
    "github.com/iliyamo/stuffworth/internal/model"
    "github.com/iliyamo/stuffworth/internal/ratelimit"
    "github.com/iliyamo/stuffworth/internal/sheets"
    "github.com/iliyamo/stuffworth/internal/valuation"
)

const (
    estimateTimeout = 60 * time.Second
    researchTimeout = 45 * time.Second
    sheetTimeout    = 15 * time.Second
    maxNotesLen     = 1000
)

// ResearchHandler runs the photo -> estimate -> research -> history pipeline.
type ResearchHandler struct {
    Estimator  valuation.Estimator  // nil when GEMINI_API_KEY is unset
    Researcher valuation.Researcher // optional
    History    HistoryStore
    Sheets     sheets.Exporter
    Limiter    ratelimit.Limiter
    Log        *zap.Logger
    MaxDim     int
}

func NewResearchHandler(est valuation.Estimator, res valuation.Researcher, hist HistoryStore,
    exp sheets.Exporter, lim ratelimit.Limiter, log *zap.Logger) *ResearchHandler {
    if exp == nil {
        exp = sheets.Noop{}
    }
    return &ResearchHandler{
        Estimator: est, Researcher: res, History: hist, Sheets: exp,
        Limiter: lim, Log: log, MaxDim: imaging.DefaultMaxDim,
    }
}

type researchReq struct {
    Image string `json:"image"` // data URL
    Notes string `json:"notes"`
}

// MarketResearch: POST /api/market-research.  Accepts a multipart "image"
// file or a JSON {image: dataURL}; "notes" is optional in both forms.
func (h *ResearchHandler) MarketResearch(c echo.Context) error {
    claims, ok := middleware.Session(c)
    uid, hasID := middleware.UserID(c)
    if !ok || !hasID {
        return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
    }
    if denied, err := limitUser(c, h.Limiter, uid, h.Log); denied {
        return err
    }
    if h.Estimator == nil {
        return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "valuation is not configured"})
    }

    raw, notes, err := readPhoto(c)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": err.Error()})
    }
    jpeg, err := imaging.Resize(bytes.NewReader(raw), h.MaxDim, imaging.DefaultQuality)
    if err != nil {
        return c.JSON(http.StatusBadRequest, echo.Map{"error": "image could not be decoded"})
    }

    ectx, cancel := context.WithTimeout(c.Request().Context(), estimateTimeout)
    est, err := h.Estimator.Estimate(ectx, valuation.Photo{JPEG: jpeg, Notes: notes})
    cancel()
    if err != nil {
        if errors.Is(err, valuation.ErrNotConfigured) {
            return c.JSON(http.StatusServiceUnavailable, echo.Map{"error": "valuation is not configured"})
        }
        h.Log.Error("market-research: estimate", zap.Uint64("user_id", uid), zap.Error(err))
        return c.JSON(http.StatusBadGateway, echo.Map{"error": "valuation failed"})
    }

    item := model.ResearchHistoryItem{
        UserID:         uid,
        ItemName:       est.ItemName,
        Description:    est.Description,
        Condition:      est.Condition,
        EstimatedPrice: est.EstimatedPrice,
        PriceLow:       est.PriceLow,
        PriceHigh:      est.PriceHigh,
        Currency:       est.Currency,
        Confidence:     est.Confidence,
        Sources:        []string{},
    }
    if h.Researcher != nil {
        rctx, cancel := context.WithTimeout(c.Request().Context(), researchTimeout)
        mr, err := h.Researcher.Research(rctx, est)
        cancel()
        if err != nil {
            h.Log.Warn("market-research: research step skipped", zap.Error(err))
        } else {
            item.MarketNotes = mr.Notes
            if mr.Sources != nil {
                item.Sources = mr.Sources
            }
        }
    }

    dctx, cancel := context.WithTimeout(c.Request().Context(), dbTimeout)
    saved, err := h.History.Add(dctx, item)
    cancel()
    if err != nil {
        h.Log.Error("market-research: save history", zap.Uint64("user_id", uid), zap.Error(err))
        return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal server error"})
    }
    sctx, cancel := context.WithTimeout(c.Request().Context(), sheetTimeout)
    err = h.Sheets.Append(sctx, saved, claims.Email)
    cancel()
    if err != nil {
        h.Log.Warn("market-research: sheet export", zap.String("id", saved.ID), zap.Error(err))
    }
    return c.JSON(http.StatusOK, echo.Map{"success": true, "data": saved})
}

// readPhoto returns the raw image bytes and the seller notes.
func readPhoto(c echo.Context) ([]byte, string, error) {
    ct := c.Request().Header.Get(echo.HeaderContentType)
    if strings.HasPrefix(ct, echo.MIMEMultipartForm) {
        fh, err := c.FormFile("image")
        if err != nil {
            return nil, "", errors.New("image is required")
        }
        f, err := fh.Open()
        if err != nil {
            return nil, "", errors.New("image could not be read")
        }
        defer f.Close()
        raw, err := io.ReadAll(f)
        if err != nil || len(raw) == 0 {
            return nil, "", errors.New("image could not be read")
        }
        return raw, trimNotes(c.FormValue("notes")), nil
    }

    var req researchReq
    if err := c.Bind(&req); err != nil {
        return nil, "", errors.New("invalid body")
    }
    if strings.TrimSpace(req.Image) == "" {
        return nil, "", errors.New("image is required")
    }
    raw, err := imaging.DecodeDataURL(req.Image)
    if err != nil {
        return nil, "", errors.New("image must be a base64 data URL")
    }
    return raw, trimNotes(req.Notes), nil
}

func trimNotes(s string) string {
    s = strings.TrimSpace(s)
    if r := []rune(s); len(r) > maxNotesLen {
        s = string(r[:maxNotesLen])
    }
    return s
}
