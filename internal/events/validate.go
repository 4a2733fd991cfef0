package events

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"fdm/internal/types"
)

// Custom validation tags registered on the event validator.
const (
	tagNonEmptyString = "nonempty_string"
	tagEventTime      = "event_time"
	tagPositiveInt    = "positive_int"
	tagObject         = "event_object"
	tagUUID           = "uuid_rfc4122"
)

// fieldRule declares one constraint on a dotted path of the raw event.
type fieldRule struct {
	path     string
	tags     string
	required bool
}

// envelopeRules apply to every event regardless of category. data is
// unconstrained at this level.
var envelopeRules = []fieldRule{
	{path: "specversion", tags: tagNonEmptyString, required: true},
	{path: "type", tags: tagNonEmptyString, required: true},
	{path: "source", tags: tagNonEmptyString, required: true},
	{path: "id", tags: tagNonEmptyString + "," + tagUUID, required: true},
	{path: "time", tags: tagNonEmptyString + "," + tagEventTime, required: true},
	{path: "subject", tags: tagNonEmptyString},
	{path: "datacontenttype", tags: tagNonEmptyString},
}

var messageRules = []fieldRule{
	{path: "data", tags: tagObject, required: true},
	{path: "data.correlationId", tags: tagNonEmptyString, required: true},
	{path: "data.recipient", tags: tagNonEmptyString},
	{path: "data.crn", tags: tagPositiveInt},
	{path: "data.sbi", tags: tagPositiveInt},
	{path: "data.content", tags: tagObject},
	{path: "data.content.subject", tags: tagNonEmptyString},
	{path: "data.content.body", tags: tagNonEmptyString},
	{path: "data.statusDetails", tags: tagObject},
}

var tagMessages = map[string]string{
	tagNonEmptyString: "must be a non-empty string",
	tagEventTime:      "must be a valid date",
	tagPositiveInt:    "must be a positive integer",
	tagObject:         "must be an object",
	tagUUID:           "must be a valid UUID",
}

// Validator checks parsed events against the envelope rules and the rules of
// their category. Every rule is evaluated and all violations are reported
// together. Fields without a rule are ignored.
type Validator struct {
	validate *validator.Validate
}

// NewValidator creates a Validator with the event tags registered.
func NewValidator() *Validator {
	v := validator.New()
	mustRegister(v, tagNonEmptyString, isNonEmptyString)
	mustRegister(v, tagEventTime, isEventTime)
	mustRegister(v, tagPositiveInt, isPositiveInt)
	mustRegister(v, tagObject, isObject)
	return &Validator{validate: v}
}

func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn, true); err != nil {
		panic(fmt.Sprintf("events: register %s: %v", tag, err))
	}
}

// Validate checks raw against the envelope rules and the category's payload
// rules.
func (v *Validator) Validate(raw RawEvent, category types.EventCategory) error {
	var categoryRules []fieldRule
	switch category {
	case types.CategoryMessage:
		categoryRules = messageRules
	default:
		return types.NewUnknownEventTypeError(string(category))
	}

	violations := v.check(raw, envelopeRules)
	violations = append(violations, v.check(raw, categoryRules)...)
	return newValidationError(violations)
}

func newValidationError(violations []string) error {
	if len(violations) == 0 {
		return nil
	}
	return types.NewValidationError(strings.Join(violations, ". "), violations)
}

func (v *Validator) check(raw RawEvent, rules []fieldRule) []string {
	var violations []string
	for _, rule := range rules {
		value, state := resolve(raw, rule.path)
		switch state {
		case pathUnreachable:
			// The parent is absent or not an object; its own rule reports it.
			continue
		case pathAbsent:
			if rule.required {
				violations = append(violations, fmt.Sprintf("%q is required", rule.path))
			}
			continue
		}

		err := v.validate.Var(value, rule.tags)
		if err == nil {
			continue
		}
		violations = append(violations, fmt.Sprintf("%q %s", rule.path, describe(err)))
	}
	return violations
}

func describe(err error) string {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		if msg, ok := tagMessages[fieldErrs[0].Tag()]; ok {
			return msg
		}
		return "failed " + fieldErrs[0].Tag()
	}
	return "is invalid"
}

type pathState int

const (
	pathPresent pathState = iota
	pathAbsent
	pathUnreachable
)

// resolve walks a dotted path. A missing final key is absent; a missing or
// non-object intermediate makes the path unreachable.
func resolve(raw RawEvent, path string) (any, pathState) {
	keys := strings.Split(path, ".")
	var current map[string]any = raw
	for i, key := range keys {
		value, ok := current[key]
		if i == len(keys)-1 {
			if !ok {
				return nil, pathAbsent
			}
			return value, pathPresent
		}
		next, isObj := value.(map[string]any)
		if !ok || !isObj {
			return nil, pathUnreachable
		}
		current = next
	}
	return nil, pathUnreachable
}

var stringType = reflect.TypeOf("")

func isNonEmptyString(fl validator.FieldLevel) bool {
	f := fl.Field()
	return f.Kind() == reflect.String && f.Type() == stringType && f.Len() > 0
}

func isEventTime(fl validator.FieldLevel) bool {
	f := fl.Field()
	if f.Kind() != reflect.String {
		return false
	}
	_, err := ParseTime(f.String())
	return err == nil
}

func isPositiveInt(fl validator.FieldLevel) bool {
	n, ok := toInt64(fl.Field().Interface())
	return ok && n > 0
}

func isObject(fl validator.FieldLevel) bool {
	f := fl.Field()
	return f.Kind() == reflect.Map && f.Type().Key().Kind() == reflect.String
}

// toInt64 converts the integer representations a decoded event can hold.
func toInt64(value any) (int64, bool) {
	switch n := value.(type) {
	case json.Number:
		i, err := n.Int64()
		return i, err == nil
	case float64:
		if n != math.Trunc(n) || n > math.MaxInt64 || n < math.MinInt64 {
			return 0, false
		}
		return int64(n), true
	case int:
		return int64(n), true
	case int64:
		return n, true
	}
	return 0, false
}
