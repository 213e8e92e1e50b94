package stem

import "github.com/stemsplit/stemsplit-be/src/shared/lib/cerr"

// Name identifies one of the five sources the separation model can
// produce. The set is closed - a prediction may omit entries but can
// never introduce new ones.
type Name string

const (
	Vocals Name = "vocals"
	Drums  Name = "drums"
	Bass   Name = "bass"
	Piano  Name = "piano"
	Other  Name = "other"
)

// AllInOrder returns every stem in the fixed processing order.
// Post-processing iterates this deterministically rather than ranging
// over prediction keys.
func AllInOrder() []Name {
	return []Name{Vocals, Drums, Bass, Piano, Other}
}

func Count() int {
	return len(AllInOrder())
}

func Parse(value string) (Name, error) {
	switch Name(value) {
	case Vocals, Drums, Bass, Piano, Other:
		return Name(value), nil
	default:
		return "", cerr.Field("stem_name", value).Error("Value does not match any known stem")
	}
}
