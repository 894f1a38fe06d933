// Package launcher opens applications by spoken name.
package launcher

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/rs/zerolog"

	"buddy/internal/ports"
)

// Platform selects which target of a scheme entry is used.
type Platform string

const (
	PlatformDesktop Platform = "desktop"
	PlatformAndroid Platform = "android"
	PlatformIOS     Platform = "ios"
)

// Target holds the per-platform URLs for one application.
type Target struct {
	Android string
	IOS     string
	Web     string
}

var Schemes = map[string]Target{
	"spotify":  {Android: "spotify://", IOS: "spotify://", Web: "https://open.spotify.com"},
	"youtube":  {Android: "vnd.youtube://", IOS: "youtube://", Web: "https://youtube.com"},
	"google":   {Android: "googlechrome://", IOS: "googlechrome://", Web: "https://google.com"},
	"maps":     {Android: "geo:0,0?q=", IOS: "maps://", Web: "https://maps.google.com"},
	"twitter":  {Android: "twitter://", IOS: "twitter://", Web: "https://twitter.com"},
	"x":        {Android: "twitter://", IOS: "twitter://", Web: "https://x.com"},
	"gmail":    {Android: "googlegmail://", IOS: "googlegmail://", Web: "https://mail.google.com"},
	"whatsapp": {Android: "whatsapp://", IOS: "whatsapp://", Web: "https://web.whatsapp.com"},
}

// Launcher implements ports.AppLauncher on top of a URL opener.
type Launcher struct {
	opener   ports.URLOpener
	platform Platform
	logger   zerolog.Logger
}

func New(opener ports.URLOpener, platform Platform, logger zerolog.Logger) *Launcher {
	switch platform {
	case PlatformAndroid, PlatformIOS:
	default:
		platform = PlatformDesktop
	}
	return &Launcher{
		opener:   opener,
		platform: platform,
		logger:   logger.With().Str("component", "launcher").Logger(),
	}
}

// SearchURL is the fallback for names without a scheme entry.
func SearchURL(name string) string {
	return "https://www.google.com/search?q=" + url.QueryEscape(name)
}

// Resolve returns the URL that Open tries first for name.
func (l *Launcher) Resolve(name string) string {
	target, ok := Schemes[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return SearchURL(strings.TrimSpace(name))
	}
	switch l.platform {
	case PlatformAndroid:
		return target.Android
	case PlatformIOS:
		return target.IOS
	default:
		return target.Web
	}
}

// Open hands the resolved URL to the opener and returns the URL that was
// opened. On mobile a failing app scheme falls back to the web target.
func (l *Launcher) Open(ctx context.Context, name string) (string, error) {
	primary := l.Resolve(name)
	err := l.opener.OpenURL(ctx, primary)
	if err == nil {
		l.logger.Info().Str("app", name).Str("url", primary).Msg("opened app")
		return primary, nil
	}

	target, known := Schemes[strings.ToLower(strings.TrimSpace(name))]
	if !known || l.platform == PlatformDesktop || target.Web == primary {
		return "", fmt.Errorf("open %q: %w", name, err)
	}

	l.logger.Warn().Err(err).Str("app", name).Msg("app scheme failed, falling back to web")
	if err := l.opener.OpenURL(ctx, target.Web); err != nil {
		return "", fmt.Errorf("open %q on the web: %w", name, err)
	}
	return target.Web, nil
}
