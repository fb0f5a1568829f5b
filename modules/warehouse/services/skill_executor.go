package services

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/sofiapulse/pulse/modules/warehouse/domain/skill"
	"github.com/sofiapulse/pulse/pkg/constants"
	"github.com/sofiapulse/pulse/pkg/serrors"
)

// Version stamps every skill response envelope.
const Version = "1.0.0"

// SkillExecutor wraps skill handlers in the uniform request/response
// envelope: parameter validation, trace propagation, duration accounting and
// error-to-envelope mapping all live here instead of in each handler.
type SkillExecutor struct {
	validate *validator.Validate
	log      *logrus.Logger
}

func NewSkillExecutor(log *logrus.Logger) *SkillExecutor {
	return &SkillExecutor{
		validate: validator.New(validator.WithRequiredStructEnabled()),
		log:      log,
	}
}

// Execute runs one skill invocation. handler receives a context carrying the
// trace id and logger; any error it returns becomes the envelope's error
// list, with the skill's fallback code for uncoded errors.
func (e *SkillExecutor) Execute(
	ctx context.Context,
	skillName string,
	req skill.Request,
	fallbackCode string,
	handler func(context.Context) (map[string]any, error),
) skill.Response {
	traceID := req.TraceID
	if traceID == "" {
		traceID = uuid.NewString()
	}
	ctx = context.WithValue(ctx, constants.TraceKey, traceID)
	if e.log != nil {
		ctx = context.WithValue(ctx, constants.LoggerKey, e.log)
	}

	meta := skill.Meta{Skill: skillName, Version: Version, TraceID: traceID}
	started := time.Now()

	fail := func(errs []skill.Error) skill.Response {
		meta.DurationMS = time.Since(started).Milliseconds()
		return skill.Response{OK: false, Errors: errs, Meta: meta}
	}

	if req.Params != nil {
		if err := e.validate.Struct(req.Params); err != nil {
			return fail(validationErrors(err))
		}
	}

	logEntry(ctx, logrus.Fields{"skill": skillName, "actor": req.Actor, "dry_run": req.DryRun}).
		Info("skill invoked")

	data, err := handler(ctx)
	if err != nil {
		logEntry(ctx, logrus.Fields{"skill": skillName}).WithError(err).Warn("skill failed")
		return fail(skill.FromError(err, fallbackCode))
	}

	meta.DurationMS = time.Since(started).Milliseconds()
	return skill.Response{OK: true, Data: data, Meta: meta}
}

// validationErrors maps struct-tag violations onto the envelope taxonomy:
// `required` failures report the parameter as missing, everything else as
// invalid. Field names are reported snake_cased to match the wire form.
func validationErrors(err error) []skill.Error {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []skill.Error{{Code: serrors.CodeParamInvalid, Message: err.Error()}}
	}
	out := make([]skill.Error, 0, len(verrs))
	for _, v := range verrs {
		field := snakeCase(v.Field())
		if v.Tag() == "required" {
			out = append(out, skill.Error{
				Code:    serrors.CodeParamMissing,
				Message: "required parameter " + field + " is missing",
				Field:   field,
			})
			continue
		}
		out = append(out, skill.Error{
			Code:    serrors.CodeParamInvalid,
			Message: "parameter " + field + " failed " + v.Tag() + " validation",
			Field:   field,
		})
	}
	return out
}

func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r + ('a' - 'A'))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}
