package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/auth/dto"
	autherror "github.com/minuradeSilva2000/Employee-Register-App-sub000/internal/errors"
	authconstant "github.com/minuradeSilva2000/Employee-Register-App-sub000/pkg/constant"
)

type errorBody struct {
	Code   string           `json:"code"`
	Error  string           `json:"error"`
	Fields []dto.FieldError `json:"fields,omitempty"`
}

var errInvalidBody = errors.New("invalid input")

// respondError writes err as {code, error}. Unexpected errors are logged and
// replaced by a generic message.
func respondError(c *fiber.Ctx, log *zap.Logger, err error) error {
	var verr *dto.ValidationError
	if errors.As(err, &verr) {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody{
			Code:   autherror.CodeValidationFailed,
			Error:  verr.Error(),
			Fields: verr.Fields,
		})
	}
	if errors.Is(err, errInvalidBody) {
		return c.Status(fiber.StatusBadRequest).JSON(errorBody{
			Code:  autherror.CodeValidationFailed,
			Error: err.Error(),
		})
	}

	if autherror.IsInternal(err) {
		log.Error("request failed",
			zap.String("method", c.Method()),
			zap.String("path", c.Path()),
			zap.Any("request_id", c.Locals(authconstant.LocalsRequestID)),
			zap.Error(err),
		)
	}
	return c.Status(autherror.Status(err)).JSON(errorBody{
		Code:  autherror.Code(err),
		Error: autherror.Message(err),
	})
}

// bind parses the JSON body into input and validates it.
func bind(c *fiber.Ctx, input any) error {
	if err := c.BodyParser(input); err != nil {
		return errInvalidBody
	}
	return dto.Validate(input)
}

// ErrorHandler renders errors that escape the handlers, such as unknown
// routes or panics turned into errors by the recover middleware.
func ErrorHandler(log *zap.Logger) fiber.ErrorHandler {
	if log == nil {
		log = zap.NewNop()
	}
	return func(c *fiber.Ctx, err error) error {
		var fe *fiber.Error
		if errors.As(err, &fe) {
			code := autherror.CodeInternal
			switch fe.Code {
			case fiber.StatusNotFound:
				code = autherror.CodeNotFound
			case fiber.StatusMethodNotAllowed, fiber.StatusBadRequest:
				code = autherror.CodeValidationFailed
			}
			return c.Status(fe.Code).JSON(errorBody{Code: code, Error: fe.Message})
		}
		return respondError(c, log, err)
	}
}
