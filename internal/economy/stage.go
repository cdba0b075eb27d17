package economy

import (
	"time"

	"pps/pkg/domain"
)

// PubertyAge is the age at which a beneficiary moves to the older stage.
const PubertyAge = 13

// Age returns the number of full years between birthdate and asOf.
func Age(birthdate, asOf time.Time) int {
	age := asOf.Year() - birthdate.Year()
	if asOf.Month() < birthdate.Month() ||
		(asOf.Month() == birthdate.Month() && asOf.Day() < birthdate.Day()) {
		age--
	}
	return age
}

// ClassifyStage buckets a beneficiary by age on asOf.
func ClassifyStage(birthdate, asOf time.Time) domain.Stage {
	if Age(birthdate, asOf) < PubertyAge {
		return domain.StagePrepuberty
	}
	return domain.StagePuberty
}
