package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"

	"github.com/dmitrijs2005/eardogger/internal/common"
)

func decodeJSON(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return err
		}
		return fmt.Errorf("%w: %v", errBadJSON, err)
	}
	return nil
}

// formBinder is implemented by request bodies that may also arrive as an
// HTML form.
type formBinder interface {
	bindForm(url.Values)
}

func decodeFormOrJSON(r *http.Request, dst formBinder) error {
	if mediaType(r) == "application/json" {
		return decodeJSON(r, dst)
	}
	if err := r.ParseForm(); err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return err
		}
		return common.Validationf("unreadable form body")
	}
	dst.bindForm(r.PostForm)
	return nil
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, common.Validationf("id %q is not a positive integer", r.PathValue("id"))
	}
	return id, nil
}
