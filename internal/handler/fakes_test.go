package handler

import (
    "context"
    "errors"
    "net/http"
    "net/http/httptest"
    "strconv"
    "strings"
    "sync"
    "testing"
    "time"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"
    "go.uber.org/zap"

    "github.com/iliyamo/stuffworth/internal/config"
    "github.com/iliyamo/stuffworth/internal/middleware"
    "github.com/iliyamo/stuffworth/internal/model"
    "github.com/iliyamo/stuffworth/internal/queue"
    "github.com/iliyamo/stuffworth/internal/ratelimit"
    "github.com/iliyamo/stuffworth/internal/repository"
    "github.com/iliyamo/stuffworth/internal/utils"
    "github.com/iliyamo/stuffworth/internal/valuation"
)

var errDB = errors.New("db down")

func testConfig() config.Config {
    return config.Config{
        SessionSecret: "test-secret",
        BaseURL:       "http://localhost:3000",
        SessionTTL:    time.Hour,
        BcryptCost:    4, // bcrypt.MinCost keeps tests fast
        ResetPinTTL:   15 * time.Minute,
    }
}

// ----- users -----

type fakeUsers struct {
    mu        sync.Mutex
    byEmail   map[string]model.User
    nextID    uint64
    err       error
    updateErr error
    updated   map[string]string // email -> hash
}

func newFakeUsers() *fakeUsers {
    return &fakeUsers{byEmail: map[string]model.User{}, nextID: 1, updated: map[string]string{}}
}

func (f *fakeUsers) add(t *testing.T, email, name, password, role string) model.User {
    t.Helper()
    hash, err := utils.HashPassword(password, 4)
    if err != nil {
        t.Fatal(err)
    }
    f.mu.Lock()
    defer f.mu.Unlock()
    u := model.User{ID: f.nextID, Email: email, Name: name, PasswordHash: hash, Plan: model.PlanFree, Role: role}
    f.nextID++
    f.byEmail[email] = u
    return u
}

func (f *fakeUsers) Create(_ context.Context, email, name, password string, cost int) (model.User, error) {
    if f.err != nil {
        return model.User{}, f.err
    }
    f.mu.Lock()
    defer f.mu.Unlock()
    if _, ok := f.byEmail[email]; ok {
        return model.User{}, repository.ErrEmailExists
    }
    hash, err := utils.HashPassword(password, cost)
    if err != nil {
        return model.User{}, err
    }
    u := model.User{ID: f.nextID, Email: email, Name: name, PasswordHash: hash, Plan: model.PlanFree, Role: model.RoleUser}
    f.nextID++
    f.byEmail[email] = u
    return u, nil
}

func (f *fakeUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
    if f.err != nil {
        return model.User{}, f.err
    }
    f.mu.Lock()
    defer f.mu.Unlock()
    u, ok := f.byEmail[email]
    if !ok {
        return model.User{}, repository.ErrUserNotFound
    }
    return u, nil
}

func (f *fakeUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
    f.mu.Lock()
    defer f.mu.Unlock()
    for _, u := range f.byEmail {
        if u.ID == id {
            return u, nil
        }
    }
    return model.User{}, repository.ErrUserNotFound
}

func (f *fakeUsers) UpdatePassword(_ context.Context, email, hash string) error {
    if f.updateErr != nil {
        return f.updateErr
    }
    f.mu.Lock()
    defer f.mu.Unlock()
    u, ok := f.byEmail[email]
    if !ok {
        return repository.ErrUserNotFound
    }
    u.PasswordHash = hash
    f.byEmail[email] = u
    f.updated[email] = hash
    return nil
}

func (f *fakeUsers) List(_ context.Context, limit, offset int) ([]model.User, error) {
    if f.err != nil {
        return nil, f.err
    }
    f.mu.Lock()
    defer f.mu.Unlock()
    out := make([]model.User, 0, len(f.byEmail))
    for id := uint64(1); id < f.nextID; id++ {
        for _, u := range f.byEmail {
            if u.ID == id {
                out = append(out, u)
            }
        }
    }
    if offset >= len(out) {
        return []model.User{}, nil
    }
    out = out[offset:]
    if len(out) > limit {
        out = out[:limit]
    }
    return out, nil
}

// ----- reset pins -----

type storedPin struct {
    hash     string
    exp      time.Time
    attempts int
}

type fakePins struct {
    mu         sync.Mutex
    pins       map[string]storedPin
    verifyErr  error
    consumeErr error
    consumed   []string
}

func newFakePins() *fakePins { return &fakePins{pins: map[string]storedPin{}} }

func (f *fakePins) Store(_ context.Context, email, pinHash string, exp time.Time) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    f.pins[email] = storedPin{hash: pinHash, exp: exp}
    return nil
}

// check mirrors ResetPinRepo: misses count and exhausted PINs disappear.
// Callers hold mu.
func (f *fakePins) check(email, pinHash string) bool {
    p, ok := f.pins[email]
    if !ok {
        return false
    }
    if p.attempts < repository.MaxPinAttempts && p.hash == pinHash && p.exp.After(time.Now()) {
        return true
    }
    p.attempts++
    if p.attempts >= repository.MaxPinAttempts {
        delete(f.pins, email)
    } else {
        f.pins[email] = p
    }
    return false
}

func (f *fakePins) VerifyResetToken(_ context.Context, email, pinHash string) (bool, error) {
    if f.verifyErr != nil {
        return false, f.verifyErr
    }
    f.mu.Lock()
    defer f.mu.Unlock()
    return f.check(email, pinHash), nil
}

func (f *fakePins) ConsumeResetToken(_ context.Context, email, pinHash string) (bool, error) {
    if f.consumeErr != nil {
        return false, f.consumeErr
    }
    f.mu.Lock()
    defer f.mu.Unlock()
    if !f.check(email, pinHash) {
        return false, nil
    }
    delete(f.pins, email)
    f.consumed = append(f.consumed, email)
    return true, nil
}

// ----- history -----

type fakeHistory struct {
    mu    sync.Mutex
    items []model.ResearchHistoryItem
    err   error
    seq   int
}

func (f *fakeHistory) Add(_ context.Context, item model.ResearchHistoryItem) (model.ResearchHistoryItem, error) {
    if f.err != nil {
        return item, f.err
    }
    f.mu.Lock()
    defer f.mu.Unlock()
    f.seq++
    if item.ID == "" {
        item.ID = "item-" + strconv.Itoa(f.seq)
    }
    if item.CreatedAt.IsZero() {
        item.CreatedAt = time.Now().UTC()
    }
    f.items = append(f.items, item)
    return item, nil
}

func (f *fakeHistory) GetResearchHistory(_ context.Context, userID uint64, limit int) ([]model.ResearchHistoryItem, error) {
    if f.err != nil {
        return nil, f.err
    }
    f.mu.Lock()
    defer f.mu.Unlock()
    out := []model.ResearchHistoryItem{}
    for i := len(f.items) - 1; i >= 0; i-- {
        if f.items[i].UserID == userID {
            out = append(out, f.items[i])
        }
    }
    if limit > 0 && len(out) > limit {
        out = out[:limit]
    }
    return out, nil
}

func (f *fakeHistory) Delete(_ context.Context, userID uint64, id string) error {
    if f.err != nil {
        return f.err
    }
    f.mu.Lock()
    defer f.mu.Unlock()
    for i, it := range f.items {
        if it.ID == id && it.UserID == userID {
            f.items = append(f.items[:i], f.items[i+1:]...)
            return nil
        }
    }
    return repository.ErrNotFound
}

// ----- collaborators -----

type fakePublisher struct {
    mu     sync.Mutex
    events []queue.PasswordResetRequested
    err    error
}

func (f *fakePublisher) PublishPasswordReset(_ context.Context, ev queue.PasswordResetRequested) error {
    f.mu.Lock()
    defer f.mu.Unlock()
    f.events = append(f.events, ev)
    return f.err
}

// countLimiter allows the first n calls per key.
type countLimiter struct {
    mu   sync.Mutex
    n    int
    seen map[string]int
    keys []string
    err  error
}

func newCountLimiter(n int) *countLimiter { return &countLimiter{n: n, seen: map[string]int{}} }

func (l *countLimiter) Allow(_ context.Context, key string) (ratelimit.Decision, error) {
    if l.err != nil {
        return ratelimit.Decision{}, l.err
    }
    l.mu.Lock()
    defer l.mu.Unlock()
    l.keys = append(l.keys, key)
    l.seen[key]++
    if l.seen[key] > l.n {
        return ratelimit.Decision{Allowed: false, Limit: l.n, Remaining: 0, RetryAfter: 3 * time.Second}, nil
    }
    return ratelimit.Decision{Allowed: true, Limit: l.n, Remaining: int64(l.n - l.seen[key])}, nil
}

type fakeEstimator struct {
    est   valuation.Estimate
    err   error
    calls int
    notes string
    size  int
}

func (f *fakeEstimator) Estimate(_ context.Context, p valuation.Photo) (valuation.Estimate, error) {
    f.calls++
    f.notes = p.Notes
    f.size = len(p.JPEG)
    return f.est, f.err
}

type fakeResearcher struct {
    mr  valuation.MarketResearch
    err error
}

func (f *fakeResearcher) Research(context.Context, valuation.Estimate) (valuation.MarketResearch, error) {
    return f.mr, f.err
}

type fakeExporter struct {
    rows     []model.ResearchHistoryItem
    emails   []string
    err      error
    deadline time.Time
}

func (f *fakeExporter) Append(ctx context.Context, item model.ResearchHistoryItem, email string) error {
    f.deadline, _ = ctx.Deadline()
    f.rows = append(f.rows, item)
    f.emails = append(f.emails, email)
    return f.err
}

// ----- request helpers -----

func jsonRequest(method, target, body string) (*http.Request, *httptest.ResponseRecorder) {
    req := httptest.NewRequest(method, target, strings.NewReader(body))
    req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
    return req, httptest.NewRecorder()
}

// withSession stores claims on the context the way SessionAuth does.
func withSession(c echo.Context, id uint64, email, role string) {
    claims := &utils.SessionClaims{
        RegisteredClaims: jwt.RegisteredClaims{
            Subject:   strconv.FormatUint(id, 10),
            ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
        },
        Email: email,
        Name:  "Test User",
        Plan:  model.PlanFree,
        Role:  role,
    }
    c.Set(middleware.CtxClaims, claims)
    c.Set(middleware.CtxUserID, id)
    c.Set(middleware.CtxRole, role)
}

func nopLog() *zap.Logger { return zap.NewNop() }
