package handler

import (
    "net/http"

    "github.com/labstack/echo/v4"

    "github.com/iliyamo/stuffworth/internal/middleware"
    "github.com/iliyamo/stuffworth/internal/model"
    "github.com/iliyamo/stuffworth/internal/web"
)

// AppPage describes one signed-in page shell.
type AppPage struct {
    Path    string
    Title   string
    Heading string
    Intro   string
}

// AppPages are the shells served behind PageGuard.
var AppPages = []AppPage{
    {"/dashboard", "Dashboard", "Your dashboard", "Your saved items and their combined value."},
    {"/market-research", "Value an item", "Value an item", "Upload a photo and we'll estimate what it would sell for."},
    {"/history", "History", "Research history", "Everything you've valued, newest first."},
    {"/checkout", "Upgrade", "Upgrade to Pro", "More valuations per hour and market research on every item."},
    {"/success", "Thank you", "You're on Pro", "Your plan has been upgraded."},
    {"/admin", "Admin", "Administration", "Registered users."},
}

// Home renders the public landing page.
func Home(c echo.Context) error {
    return c.Render(http.StatusOK, "home", web.NewPage(""))
}

// PhotoTips renders the photo guidance page.
func PhotoTips(c echo.Context) error {
    return c.Render(http.StatusOK, "photo-tips", web.NewPage("Photo tips"))
}

// ForgotPasswordPage renders the PIN reset form.
func ForgotPasswordPage(c echo.Context) error {
    return c.Render(http.StatusOK, "forgot-password", web.NewPage("Reset password"))
}

// Login renders the sign-in form.  callbackUrl is where the form goes after
// a successful sign-in.
func Login(c echo.Context) error {
    p := web.NewPage("Sign in")
    p.CallbackURL = web.SafeCallback(c.QueryParam("callbackUrl"))
    return c.Render(http.StatusOK, "login", p)
}

// App returns the handler for a signed-in page shell.  PageGuard has already
// authenticated the request.
func App(page AppPage) echo.HandlerFunc {
    return func(c echo.Context) error {
        p := web.NewPage(page.Title)
        p.Heading, p.Intro = page.Heading, page.Intro
        if claims, ok := middleware.Session(c); ok {
            p.UserName = claims.Name
            if p.UserName == "" {
                p.UserName = claims.Email
            }
            p.IsAdmin = claims.Role == model.RoleAdmin
        }
        c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
        return c.Render(http.StatusOK, "app", p)
    }
}
