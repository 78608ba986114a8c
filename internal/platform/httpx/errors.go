// Package httpx provides HTTP response utilities.
package httpx

import (
	"errors"
	"net/http"

	"github.com/odyssey-erp/contractdesk/internal/shared"
)

const problemTypePrefix = "urn:contractdesk:problem:"

type problemKind struct {
	target error
	status int
	title  string
	slug   string
}

// Order matters: the first sentinel found in the chain wins.
var problemKinds = []problemKind{
	{shared.ErrIdentityMissing, http.StatusUnauthorized, "Unauthorized", "identity-missing"},
	{shared.ErrForbidden, http.StatusForbidden, "Forbidden", "forbidden"},
	{shared.ErrNotFound, http.StatusNotFound, "Not Found", "not-found"},
	{shared.ErrValidation, http.StatusBadRequest, "Validation Failed", "validation"},
	{shared.ErrPrecondition, http.StatusConflict, "Precondition Failed", "precondition"},
}

// RespondError maps domain errors to RFC7807 responses. Unmapped errors become a
// detail-less 500 so internal messages never leak.
func RespondError(w http.ResponseWriter, err error) {
	for _, kind := range problemKinds {
		if errors.Is(err, kind.target) {
			writeProblem(w, ProblemDetail{
				Type:   problemTypePrefix + kind.slug,
				Title:  kind.title,
				Status: kind.status,
				Detail: err.Error(),
			})
			return
		}
	}
	writeProblem(w, ProblemDetail{
		Type:   problemTypePrefix + "internal",
		Title:  "Internal Error",
		Status: http.StatusInternalServerError,
	})
}
