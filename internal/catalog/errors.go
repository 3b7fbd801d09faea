package catalog

import "github.com/WailSalutem-Health-Care/clinic-service/internal/apperr"

var (
	ErrNameRequired = apperr.Validation("name is required")
)

func duplicate(kind string, err error) error {
	if apperr.KindOf(err) == apperr.KindConflict {
		return apperr.Conflict(kind+" with this name already exists", err)
	}
	return err
}
