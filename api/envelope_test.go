package api_test

import (
	"testing"

	"github.com/stretchr/testify/require"

	"liminal/api"
	liminalerrors "liminal/core/errors"
)

func TestToError_NotFound(t *testing.T) {
	result := api.ToError(liminalerrors.ErrNotFound)
	require.Equal(t, api.CodeNotFound, result.Code)
}

func TestToError_InvariantViolation(t *testing.T) {
	err := &liminalerrors.InvariantViolation{InvariantID: "KILL_SWITCH_OVERRIDES_ALL", Message: "blocked"}
	result := api.ToError(err)
	require.Equal(t, api.CodeInvariantViolation, result.Code)
	require.Equal(t, "KILL_SWITCH_OVERRIDES_ALL", result.InvariantID)
}

func TestToError_ValidationFailure(t *testing.T) {
	err := &liminalerrors.ValidationFailure{Reason: "no accounts"}
	result := api.ToError(err)
	require.Equal(t, api.CodeValidationFailure, result.Code)
}

func TestToError_Unknown(t *testing.T) {
	result := api.ToError(assertNewErr("boom"))
	require.Equal(t, api.CodeUnknown, result.Code)
}

func TestOk_SetsOKTrue(t *testing.T) {
	env := api.Ok(map[string]string{"foo": "bar"})
	require.True(t, env.OK)
	require.Nil(t, env.Err)
}

func TestFail_SetsOKFalse(t *testing.T) {
	env := api.Fail(liminalerrors.ErrNotFound)
	require.False(t, env.OK)
	require.Equal(t, api.CodeNotFound, env.Err.Code)
}

type simpleErr string

func (e simpleErr) Error() string { return string(e) }

func assertNewErr(msg string) error { return simpleErr(msg) }
