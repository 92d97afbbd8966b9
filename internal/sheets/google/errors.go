package google

import (
	"errors"
	"net/http"

	"google.golang.org/api/googleapi"
)

// IsPermanent reports whether a Sheets API error will not go away on retry:
// client errors other than rate limiting (bad range, missing tab, no access).
func IsPermanent(err error) bool {
	var gerr *googleapi.Error
	if !errors.As(err, &gerr) {
		return false
	}
	if gerr.Code == http.StatusTooManyRequests {
		return false
	}
	return gerr.Code >= 400 && gerr.Code < 500
}
