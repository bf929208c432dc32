package dashboard

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/nexusride/nexusride-web/internal/shared"
	"github.com/nexusride/nexusride-web/internal/trips"
)

// yearsAhead bounds how far ahead a subscription may be requested.
const yearsAhead = 5

type subscribeForm struct {
	StartMonth   int    `validate:"required,min=1,max=12"`
	EndMonth     int    `validate:"required,min=1,max=12,gtefield=StartMonth"`
	Year         int    `validate:"required"`
	StopName     string `validate:"required,knownstop"`
	SubmissionID string `validate:"omitempty,uuid"`
}

// newValidator returns a validator that also knows the route catalog.
func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("knownstop", func(fl validator.FieldLevel) bool {
		return trips.KnownStop(fl.Field().String())
	})
	return v
}

func parseSubscribeForm(r *http.Request) subscribeForm {
	atoi := func(key string) int {
		n, err := strconv.Atoi(strings.TrimSpace(r.PostFormValue(key)))
		if err != nil {
			return 0
		}
		return n
	}
	return subscribeForm{
		StartMonth:   atoi("start_month"),
		EndMonth:     atoi("end_month"),
		Year:         atoi("year"),
		StopName:     strings.TrimSpace(r.PostFormValue("stop_name")),
		SubmissionID: strings.TrimSpace(r.PostFormValue("submission_id")),
	}
}

// validate checks the struct rules plus the year window relative to now.
func (f subscribeForm) validate(v *validator.Validate, now time.Time) map[string]string {
	errs := make(map[string]string)
	if err := v.Struct(f); err != nil {
		errs = shared.ValidationMessages(err)
	}
	if _, seen := errs["Year"]; !seen && f.Year != 0 {
		if first := now.Year(); f.Year < first || f.Year > first+yearsAhead {
			errs["Year"] = fmt.Sprintf("Year must be between %d and %d.", first, first+yearsAhead)
		}
	}
	return errs
}

// defaultForm preselects the current month for a new request.
func defaultForm(now time.Time) subscribeForm {
	m := int(now.Month())
	return subscribeForm{StartMonth: m, EndMonth: m, Year: now.Year()}
}

func monthOptions() []int {
	out := make([]int, 12)
	for i := range out {
		out[i] = i + 1
	}
	return out
}

func yearOptions(now time.Time) []int {
	out := make([]int, 0, yearsAhead+1)
	for y := now.Year(); y <= now.Year()+yearsAhead; y++ {
		out = append(out, y)
	}
	return out
}

// backendFields maps backend field names onto form fields.
var backendFields = map[string]string{
	"start_month": "StartMonth",
	"end_month":   "EndMonth",
	"year":        "Year",
	"stop_name":   "StopName",
}
