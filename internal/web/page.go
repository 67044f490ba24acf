package web

import (
    "strings"
    "time"
)

// Page is the data every template receives.
type Page struct {
    Brand       string
    Title       string
    Heading     string
    Intro       string
    CallbackURL string
    UserName    string
    IsAdmin     bool
}

// NewPage fills in the brand.
func NewPage(title string) Page {
    return Page{Brand: Brand, Title: title}
}

// SafeCallback returns target when it is a same-site path and "/dashboard"
// otherwise, so the login form cannot be used as an open redirect.
func SafeCallback(target string) string {
    if !strings.HasPrefix(target, "/") || strings.HasPrefix(target, "//") || strings.HasPrefix(target, "/\\") {
        return "/dashboard"
    }
    return target
}

func currentYear() int { return time.Now().Year() }
