package main

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
)

const defaultServerURL = "http://127.0.0.1:7654"

// resolveListenURL reads SPR_SERVER_URL or SPR_SERVER_URL_PATTERN
// (pattern wins if both are set, since it's the more specific of the
// two), substitutes {PID} and {UUID} tokens, and falls back to
// defaultServerURL if neither is set (spec.md §6).
func resolveListenURL() string {
	if pattern := os.Getenv("SPR_SERVER_URL_PATTERN"); pattern != "" {
		return substituteTokens(pattern)
	}
	if u := os.Getenv("SPR_SERVER_URL"); u != "" {
		return u
	}
	return defaultServerURL
}

func substituteTokens(pattern string) string {
	pattern = strings.ReplaceAll(pattern, "{PID}", strconv.Itoa(os.Getpid()))
	pattern = strings.ReplaceAll(pattern, "{UUID}", uuid.NewString())
	return pattern
}

// listen opens a net.Listener for rawURL, which must use one of the
// schemes spec.md §6 names: http:// (TCP), unix:// (Unix domain
// socket), or http+unix:// (HTTP served over a Unix domain socket).
func listen(rawURL string) (net.Listener, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("sprserver: parsing listen URL %q: %w", rawURL, err)
	}
	switch u.Scheme {
	case "http":
		return net.Listen("tcp", u.Host)
	case "unix", "http+unix":
		return net.Listen("unix", u.Path)
	default:
		return nil, fmt.Errorf("sprserver: unsupported scheme %q in %q", u.Scheme, rawURL)
	}
}
