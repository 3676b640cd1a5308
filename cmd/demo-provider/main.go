// Command demo-provider runs the in-memory identity provider so the
// xaytheon client can be exercised locally without a real backend.
package main

import (
	"flag"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/shruthideepikareddy/xaytheon/provider"
)

func main() {
	addr := flag.String("addr", ":5000", "listen address")
	cookieMode := flag.Bool("cookie", false, "carry the refresh credential on a session cookie instead of the response body")
	accessTTL := flag.Duration("access-ttl", 15*time.Minute, "access token lifetime")
	seed := flag.String("seed", "dev@example.com:devpassword", "comma-separated email:password pairs to seed")
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	p := provider.New(provider.Config{
		AccessTokenTTL: *accessTTL,
		CookieMode:     *cookieMode,
		Logger:         logger,
	})

	for _, pair := range strings.Split(*seed, ",") {
		if pair == "" {
			continue
		}
		email, password, ok := strings.Cut(pair, ":")
		if !ok {
			logger.Fatal().Str("pair", pair).Msg("seed entries must be email:password")
		}
		if err := p.AddUser(email, password, ""); err != nil {
			logger.Fatal().Err(err).Str("email", email).Msg("failed to seed user")
		}
		logger.Info().Str("email", email).Msg("seeded user")
	}

	logger.Info().Str("addr", *addr).Bool("cookie_mode", *cookieMode).Msg("demo provider listening")
	if err := http.ListenAndServe(*addr, p.Handler()); err != nil {
		logger.Fatal().Err(err).Msg("server stopped")
	}
}
