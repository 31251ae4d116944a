// Package validation はリクエスト送信前の入力チェックを提供する。
// チェックするのは必須項目の有無と列挙値の範囲のみで、それ以外はサーバーの判定に従う。
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/jobboard/internal/model"
)

// Validator はgo-playground/validatorのラッパー。
type Validator struct {
	validate *validator.Validate
}

// New はカスタムルールを登録したValidatorを生成する。
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())

	// エラーの項目名にはJSONタグ名を使う
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	mustRegister(v, "user_role", func(fl validator.FieldLevel) bool {
		return model.Role(fl.Field().String()).Valid()
	})
	mustRegister(v, "job_type", func(fl validator.FieldLevel) bool {
		return model.JobType(fl.Field().String()).Valid()
	})
	mustRegister(v, "application_status", func(fl validator.FieldLevel) bool {
		return model.ApplicationStatus(fl.Field().String()).Valid()
	})

	return &Validator{validate: v}
}

// mustRegister はカスタムルールを登録する。登録失敗は起動時の不具合のためpanicする。
func mustRegister(v *validator.Validate, tag string, fn validator.Func) {
	if err := v.RegisterValidation(tag, fn); err != nil {
		panic(fmt.Sprintf("カスタムルール %q の登録に失敗しました: %v", tag, err))
	}
}

// Struct は構造体を検証する。
// 検証エラーは項目別エラーを含む *model.APIError（validation）として返す。
func (v *Validator) Struct(s any) error {
	err := v.validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("入力チェックに失敗しました: %w", err)
	}

	fields := make(map[string][]string, len(verrs))
	for _, fe := range verrs {
		name := fe.Field()
		fields[name] = append(fields[name], message(fe))
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return model.NewValidationError(fmt.Sprintf("%s: %s", keys[0], fields[keys[0]][0]), fields)
}

// message は検証エラーをサーバーの項目別エラーと同じ形式の文言に変換する。
func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required", "required_if":
		return "This field is required."
	case "url":
		return "Enter a valid URL."
	case "datetime":
		return "Date has wrong format. Use one of these formats instead: YYYY-MM-DD."
	case "user_role", "job_type", "application_status":
		return fmt.Sprintf("\"%v\" is not a valid choice.", fe.Value())
	default:
		return fmt.Sprintf("Invalid value (failed on '%s' tag).", fe.Tag())
	}
}
