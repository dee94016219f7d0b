package restbackup

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
)

// decodeJSON reads the whole response body into target and closes it.
// An empty body or malformed JSON is a terminal protocol error.
func decodeJSON(resp *Response, target interface{}) error {
	defer resp.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: reading response body: %w", ErrTerminalProtocol, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return fmt.Errorf("%w: response contains no body", ErrTerminalProtocol)
	}
	if err := json.Unmarshal(data, target); err != nil {
		preview := string(data)
		if len(preview) > 200 {
			preview = preview[:200] + "..."
		}
		return fmt.Errorf("%w: failed to unmarshal JSON response (content-type=%s): %w\nResponse preview: %s",
			ErrTerminalProtocol, resp.Header.Get(HeaderContentType), err, preview)
	}
	return nil
}
