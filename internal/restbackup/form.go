package restbackup

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/google/go-querystring/query"
)

// makeFormURLEncoded encodes alternating names and values as an
// application/x-www-form-urlencoded body, keeping their order.
func makeFormURLEncoded(params []string) (string, error) {
	if len(params)%2 == 1 {
		return "", fmt.Errorf("%w: params must have an even number of strings, got %d", ErrInvalidArgument, len(params))
	}
	pairs := make([]string, 0, len(params)/2)
	for i := 0; i < len(params); i += 2 {
		pairs = append(pairs, url.QueryEscape(params[i])+"="+url.QueryEscape(params[i+1]))
	}
	return strings.Join(pairs, "&"), nil
}

// encodeForm encodes a struct tagged with `url:"..."` as a form body.
func encodeForm(v interface{}) (string, error) {
	values, err := query.Values(v)
	if err != nil {
		return "", fmt.Errorf("%w: cannot encode form: %v", ErrInvalidArgument, err)
	}
	return values.Encode(), nil
}
