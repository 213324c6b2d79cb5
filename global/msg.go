package global

import (
	"net/http"

	"PMentor/tools/errs"
)

type Msg struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
	Data any    `json:"data,omitempty"`
}

func Success(data any) *Msg {
	return &Msg{
		Code: 200,
		Msg:  "",
		Data: data,
	}
}

// Fail maps err to an http status and the response envelope.
func Fail(err error) (int, *Msg) {
	code := errs.Code(err)
	msg := err.Error()
	if code == errs.ServerInternalError {
		// internal detail stays in the log
		msg = "internal error"
	}
	return HTTPStatus(code), &Msg{Code: code, Msg: msg}
}

func HTTPStatus(code int) int {
	switch code {
	case errs.AuthenticationError:
		return http.StatusUnauthorized
	case errs.AuthorizationError, errs.ForbiddenError:
		return http.StatusForbidden
	case errs.RecordNotFoundError:
		return http.StatusNotFound
	case errs.ArgsError:
		return http.StatusBadRequest
	case errs.DuplicateKeyError:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}
