package usecase

import (
	"math"
	"reflect"
	"regexp"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/totegamma/reputation-engine"
)

// Payload shapes accepted from clients. Pointers distinguish a missing field
// from its zero value.

type periodPayload struct {
	Months     int     `json:"months" validate:"gt=0"`
	Multiplier float64 `json:"multiplier" validate:"gte=0.05,lte=10,multiplierstep"`
}

type tagPayload struct {
	Name        string          `json:"name" validate:"required,min=3,max=50,tagname"`
	Description string          `json:"description" validate:"max=1024,freetext"`
	VoteReward  *float64        `json:"vote_reward" validate:"required,gte=0,lte=1"`
	TimePeriods []periodPayload `json:"time_periods" validate:"required,min=1,max=10,dive"`
}

type votePayload struct {
	AuthorKey string   `json:"author_key" validate:"required,keycomponent"`
	TargetKey string   `json:"target_key" validate:"required,keycomponent"`
	TagKey    string   `json:"tag_key" validate:"required,keycomponent"`
	Value     *int     `json:"value" validate:"required,oneof=-1 0 1"`
	Weight    *float64 `json:"weight" validate:"required,gte=0,lte=1"`
}

type userPayload struct {
	Handle      string `json:"handle" validate:"required,min=3,max=30,handle"`
	DisplayName string `json:"display_name" validate:"required,max=100,displayname"`
}

var (
	tagNamePattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9 _-]*$`)
	handlePattern  = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)
)

func newPayloadValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("tagname", func(fl validator.FieldLevel) bool {
		return tagNamePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("handle", func(fl validator.FieldLevel) bool {
		return handlePattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("keycomponent", func(fl validator.FieldLevel) bool {
		return reputation.IsKeyComponent(fl.Field().String())
	})
	_ = v.RegisterValidation("freetext", func(fl validator.FieldLevel) bool {
		return !hasControlChars(fl.Field().String(), true)
	})
	_ = v.RegisterValidation("displayname", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return strings.TrimSpace(s) == s && s != "" && !hasControlChars(s, false)
	})
	_ = v.RegisterValidation("multiplierstep", func(fl validator.FieldLevel) bool {
		return onMultiplierStep(fl.Field().Float())
	})

	return v
}

func hasControlChars(s string, allowLayout bool) bool {
	for _, r := range s {
		if allowLayout && (r == '\n' || r == '\t' || r == '\r') {
			continue
		}
		if unicode.IsControl(r) {
			return true
		}
	}
	return false
}

func onMultiplierStep(m float64) bool {
	steps := m / 0.05
	return math.Abs(steps-math.Round(steps)) < 1e-9
}
