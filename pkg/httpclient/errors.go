package httpclient

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	apperrors "github.com/utafrali/EcommerceGo/pkg/errors"
)

// maxErrorBody bounds how much of a failed response is read into the error.
const maxErrorBody = 1 << 20

// downstreamError covers the two error shapes seen from collaborators: the
// standard envelope ({"error":{"code","message"}}) and a flat {"message"}.
type downstreamError struct {
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	Message string `json:"message"`
}

// ParseResponseError reads the body of a non-2xx HTTP response and translates
// it into an AppError. The response body is fully consumed and closed.
func ParseResponseError(resp *http.Response, serviceName string) error {
	defer func() { _ = resp.Body.Close() }()

	bodyBytes, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil {
		return apperrors.Upstream(serviceName,
			fmt.Errorf("status %d (failed to read body: %w)", resp.StatusCode, err))
	}

	message := strings.TrimSpace(string(bodyBytes))
	var downstream downstreamError
	if json.Unmarshal(bodyBytes, &downstream) == nil {
		switch {
		case downstream.Error != nil && downstream.Error.Message != "":
			message = downstream.Error.Message
		case downstream.Message != "":
			message = downstream.Message
		}
	}

	return mapDownstreamError(resp.StatusCode, message, serviceName)
}

// mapDownstreamError translates a collaborator's status code into an AppError
// carrying the matching sentinel.
func mapDownstreamError(status int, message, serviceName string) error {
	switch {
	case status == http.StatusNotFound:
		return apperrors.NotFound(serviceName, "resource")
	case status == http.StatusBadRequest:
		return apperrors.InvalidInput(fmt.Sprintf("%s: %s", serviceName, message))
	case status == http.StatusServiceUnavailable, status == http.StatusTooManyRequests:
		return apperrors.ServiceUnavailable(fmt.Sprintf("%s: %s", serviceName, message))
	default:
		return apperrors.Upstream(serviceName, fmt.Errorf("status %d: %s", status, message))
	}
}
