package criteria

import (
	"strconv"

	"github.com/viant/onboard/model"
	"github.com/viant/onboard/service/dao"
)

// MatchSnapshot reports whether snapshot satisfies every parameter. Unknown
// parameters are ignored.
func MatchSnapshot(snapshot *model.Snapshot, parameters []*dao.Parameter) bool {
	if snapshot == nil {
		return false
	}
	for _, parameter := range parameters {
		if parameter == nil {
			continue
		}
		switch parameter.Name {
		case dao.ParamCurrentStepID:
			if !matchAny(snapshot.CurrentStepID, parameter.Value) {
				return false
			}
		case dao.ParamCompleted:
			if !matchAny(strconv.FormatBool(snapshot.IsCompleted()), parameter.Value) {
				return false
			}
		}
	}
	return true
}

func matchAny(value string, expected interface{}) bool {
	switch actual := expected.(type) {
	case string:
		return value == actual
	case []string:
		for _, candidate := range actual {
			if value == candidate {
				return true
			}
		}
		return false
	}
	return true
}
