package errors_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"gorm.io/gorm"

	"github.com/oggyb/devmatch/internal/domain"
	svcErr "github.com/oggyb/devmatch/internal/errors"
)

func TestMap(t *testing.T) {
	tests := []struct {
		err  error
		code codes.Code
	}{
		{fmt.Errorf("%w: bad id", domain.ErrValidation), codes.InvalidArgument},
		{fmt.Errorf("%w: thread", domain.ErrNotFound), codes.NotFound},
		{gorm.ErrRecordNotFound, codes.NotFound},
		{fmt.Errorf("%w: blocked", domain.ErrBlocked), codes.PermissionDenied},
		{fmt.Errorf("%w: bad token", domain.ErrUnauthenticated), codes.Unauthenticated},
		{fmt.Errorf("%w: email taken", domain.ErrConflict), codes.AlreadyExists},
		{gorm.ErrDuplicatedKey, codes.AlreadyExists},
		{fmt.Errorf("%w: offline", domain.ErrUnavailable), codes.Unavailable},
		{context.DeadlineExceeded, codes.DeadlineExceeded},
		{context.Canceled, codes.Canceled},
		{errors.New("boom"), codes.Internal},
		{status.Error(codes.AlreadyExists, "dup"), codes.AlreadyExists},
	}
	for _, tt := range tests {
		t.Run(tt.code.String(), func(t *testing.T) {
			assert.Equal(t, tt.code, status.Code(svcErr.Map(tt.err)))
		})
	}
	assert.NoError(t, svcErr.Map(nil))
}
