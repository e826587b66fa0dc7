package e621

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	errs "github.com/biscuitvixen/e6-dl/pkg/errors"
)

const (
	// DefaultBaseURL is the e621 site and API root
	DefaultBaseURL = "https://e621.net"

	// PoolEndpoint is the path pattern for a single pool
	PoolEndpoint = "/pools/%d.json"

	// PostEndpoint is the path pattern for a single post
	PostEndpoint = "/posts/%d.json"
)

var poolPathPattern = regexp.MustCompile(`(?:^|/)pools/(\d+)(?:\.json)?/?$`)

// ParsePoolID extracts a pool ID from a bare number or a pool URL such as
// https://e621.net/pools/1234, .../pools/1234.json or e621.net/pools/1234/?page=2
func ParsePoolID(idOrURL string) (int, error) {
	input := strings.TrimSpace(idOrURL)
	if input == "" {
		return 0, errs.New(errs.ErrorTypeParsing, "empty pool ID")
	}

	if id, err := strconv.Atoi(input); err == nil {
		if id <= 0 {
			return 0, errs.New(errs.ErrorTypeParsing, fmt.Sprintf("invalid pool ID %q", input))
		}
		return id, nil
	}

	path := input
	if u, err := url.Parse(input); err == nil {
		path = u.Path
	}

	match := poolPathPattern.FindStringSubmatch(path)
	if match == nil {
		return 0, errs.New(errs.ErrorTypeParsing, fmt.Sprintf("not a pool ID or pool URL: %q", input))
	}

	id, err := strconv.Atoi(match[1])
	if err != nil || id <= 0 {
		return 0, errs.New(errs.ErrorTypeParsing, fmt.Sprintf("invalid pool ID in %q", input))
	}
	return id, nil
}

// PoolURL returns the browser URL of a pool
func PoolURL(baseURL string, poolID int) string {
	return fmt.Sprintf("%s/pools/%d", strings.TrimRight(baseURL, "/"), poolID)
}

func endpointURL(baseURL, pattern string, id int) string {
	return strings.TrimRight(baseURL, "/") + fmt.Sprintf(pattern, id)
}
