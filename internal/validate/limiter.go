package validate

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
)

// BodyLimiter is a defensive ambient guard on request body size and JSON
// nesting depth, kept from the teacher's security.ValidationConfig even
// though per-user auth/rate-limiting are out of scope for this gateway.
type BodyLimiter struct {
	MaxBodyBytes int64
	MaxJSONDepth int
}

// NewBodyLimiter applies the teacher's defaults (10MB body, depth 20).
func NewBodyLimiter() *BodyLimiter {
	return &BodyLimiter{MaxBodyBytes: 10 << 20, MaxJSONDepth: 20}
}

// ReadBody reads r.Body up to MaxBodyBytes+1 and checks JSON nesting
// depth before returning, so a handler never buffers an oversized or
// pathologically nested body.
func (l *BodyLimiter) ReadBody(r *http.Request) ([]byte, error) {
	limited := io.LimitReader(r.Body, l.MaxBodyBytes+1)
	data, err := io.ReadAll(limited)
	if err != nil {
		return nil, fmt.Errorf("validate: failed to read request body: %w", err)
	}
	if int64(len(data)) > l.MaxBodyBytes {
		return nil, fmt.Errorf("validate: request body exceeds %d bytes", l.MaxBodyBytes)
	}
	if len(data) > 0 {
		if depth, err := jsonDepth(data); err != nil {
			return nil, fmt.Errorf("validate: request body is not valid JSON: %w", err)
		} else if depth > l.MaxJSONDepth {
			return nil, fmt.Errorf("validate: request body JSON nesting depth %d exceeds limit %d", depth, l.MaxJSONDepth)
		}
	}
	return data, nil
}

// jsonDepth walks the token stream and returns the maximum nesting depth
// without materializing the document into a tree.
func jsonDepth(data []byte) (int, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	depth, maxDepth := 0, 0
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return 0, err
		}
		switch tok.(type) {
		case json.Delim:
			d := tok.(json.Delim)
			switch d {
			case '{', '[':
				depth++
				if depth > maxDepth {
					maxDepth = depth
				}
			case '}', ']':
				depth--
			}
		}
	}
	return maxDepth, nil
}
