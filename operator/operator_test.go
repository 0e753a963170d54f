package operator

import (
	"context"
	"reflect"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEntity struct {
	Name string
}

type testEntityController struct {
	reconciled int
}

func (c *testEntityController) Reconcile(ctx context.Context, entity *testEntity) (Result, error) {
	c.reconciled++
	return Result{RequeueAfter: time.Minute}, nil
}

func (c *testEntityController) Deleted(ctx context.Context, entity *testEntity) error {
	return nil
}

// controllerBase supplies the methods through embedding.
type controllerBase[E any] struct{}

func (controllerBase[E]) Reconcile(ctx context.Context, entity E) (Result, error) {
	return Result{}, nil
}

func (controllerBase[E]) Deleted(ctx context.Context, entity E) error {
	return nil
}

type otherEntity struct{}

type embeddedController struct {
	controllerBase[otherEntity]
}

func TestAddControllerRecordsTypes(t *testing.T) {
	b := NewBuilder()
	var builder Builder = b

	builder = AddController[testEntityController, *testEntity](builder)
	builder = AddController[embeddedController, otherEntity](builder)
	require.NotNil(t, builder)

	regs := b.Registrations()
	require.Len(t, regs, 2)
	assert.Equal(t, reflect.TypeFor[testEntityController](), regs[0].Controller)
	assert.Equal(t, reflect.TypeFor[*testEntity](), regs[0].Entity)
	assert.Equal(t, reflect.TypeFor[embeddedController](), regs[1].Controller)
	assert.Equal(t, reflect.TypeFor[otherEntity](), regs[1].Entity)
	assert.NoError(t, b.Err())
}

func TestRegistrationNewController(t *testing.T) {
	b := NewBuilder()
	AddController[testEntityController, *testEntity](b)

	reg := b.Registrations()[0]
	ctrl, ok := reg.NewController().(EntityController[*testEntity])
	require.True(t, ok)

	res, err := ctrl.Reconcile(context.Background(), &testEntity{Name: "a"})
	require.NoError(t, err)
	assert.Equal(t, time.Minute, res.RequeueAfter)

	// Every call returns a fresh controller.
	assert.NotSame(t, reg.NewController(), reg.NewController())
}

func TestRecordingBuilderRejectsDuplicates(t *testing.T) {
	b := NewBuilder()
	AddController[testEntityController, *testEntity](b)
	AddController[testEntityController, *testEntity](b)

	assert.Len(t, b.Registrations(), 1)
	require.Error(t, b.Err())
	assert.Contains(t, b.Err().Error(), "registered more than once")
}

func TestRegistrationString(t *testing.T) {
	b := NewBuilder()
	AddController[testEntityController, *testEntity](b)
	assert.Equal(t, "operator.testEntityController -> *operator.testEntity", b.Registrations()[0].String())
}
