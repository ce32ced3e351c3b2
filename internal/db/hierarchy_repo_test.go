package db

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"tokenpoint/internal/types"
)

type mockVendorLookup struct {
	mock.Mock
}

func (m *mockVendorLookup) GetVendorByName(ctx context.Context, name string) (*types.VendorRecord, error) {
	args := m.Called(ctx, name)
	if v := args.Get(0); v != nil {
		return v.(*types.VendorRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func TestHierarchyRepo_GetHierarchy_UnconfiguredReturnsEmptyTree(t *testing.T) {
	db := new(mockDBTX)
	repo := NewHierarchyRepo(db)
	ctx := context.Background()

	row := &mockRow{scanErr: pgx.ErrNoRows}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"solar"}).Return(row)

	h, err := repo.GetHierarchy(ctx, types.TokenSolar)
	require.NoError(t, err)
	require.NotNil(t, h)
	assert.Equal(t, types.TokenSolar, h.TokenType)
	assert.Empty(t, h.Areas)
}

func TestHierarchyRepo_GetHierarchy_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewHierarchyRepo(db)
	ctx := context.Background()

	doc := []byte(`[{"name":"Jakarta Selatan","projects":[{"name":"Kemang Residence","vendors":[{"name":"PT Listrik Jaya"}]}]}]`)
	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*[]byte) = doc
			return nil
		},
	}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"electricity"}).Return(row)

	h, err := repo.GetHierarchy(ctx, types.TokenElectricity)
	require.NoError(t, err)
	require.Len(t, h.Areas, 1)
	a := h.FindArea("Jakarta Selatan")
	require.NotNil(t, a)
	p := a.FindProject("Kemang Residence")
	require.NotNil(t, p)
	assert.True(t, p.HasVendor("PT Listrik Jaya"))
}

func TestHierarchyRepo_SaveHierarchy_RejectsDuplicateNames(t *testing.T) {
	db := new(mockDBTX)
	repo := NewHierarchyRepo(db)

	h := &types.AreaHierarchy{
		TokenType: types.TokenElectricity,
		Areas: []types.Area{
			{Name: "Jakarta Selatan"},
			{Name: "Jakarta Selatan"},
		},
	}

	err := repo.SaveHierarchy(context.Background(), h)
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeValidationInvalidField, appErr.Code)
	db.AssertNotCalled(t, "Exec")
}

func TestHierarchyRepo_AddVendorToProject_UnregisteredVendor(t *testing.T) {
	db := new(mockDBTX)
	repo := NewHierarchyRepo(db)
	registry := new(mockVendorLookup)

	registry.On("GetVendorByName", mock.Anything, "PT Ghost Power").Return(nil, nil)

	err := repo.AddVendorToProject(context.Background(), registry,
		types.TokenElectricity, "Jakarta Selatan", "Kemang Residence", "PT Ghost Power")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeNotFoundVendor, appErr.Code)
}

func TestHierarchyRepo_AddVendorToProject_UnauthorizedTokenType(t *testing.T) {
	db := new(mockDBTX)
	repo := NewHierarchyRepo(db)
	registry := new(mockVendorLookup)

	registry.On("GetVendorByName", mock.Anything, "PT Air Bersih").Return(&types.VendorRecord{
		Name:            "PT Air Bersih",
		HandledServices: []types.TokenType{types.TokenWater},
	}, nil)

	err := repo.AddVendorToProject(context.Background(), registry,
		types.TokenElectricity, "Jakarta Selatan", "Kemang Residence", "PT Air Bersih")
	require.Error(t, err)

	var appErr *types.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, types.ErrCodeConflictVendorHandling, appErr.Code)
}

func TestHierarchyRepo_AddVendorToProject_IdempotentWhenAlreadyAttached(t *testing.T) {
	db := new(mockDBTX)
	repo := NewHierarchyRepo(db)
	ctx := context.Background()
	registry := new(mockVendorLookup)

	registry.On("GetVendorByName", mock.Anything, "PT Listrik Jaya").Return(&types.VendorRecord{
		Name:            "PT Listrik Jaya",
		HandledServices: []types.TokenType{types.TokenElectricity},
	}, nil)

	doc := []byte(`[{"name":"Jakarta Selatan","projects":[{"name":"Kemang Residence","vendors":[{"name":"PT Listrik Jaya"}]}]}]`)
	row := &mockRow{
		scanFn: func(dest ...any) error {
			*dest[0].(*[]byte) = doc
			return nil
		},
	}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), []any{"electricity"}).Return(row)

	err := repo.AddVendorToProject(ctx, registry,
		types.TokenElectricity, "Jakarta Selatan", "Kemang Residence", "PT Listrik Jaya")
	require.NoError(t, err)
	// No write happened; the vendor was already attached.
	db.AssertNotCalled(t, "Exec")
}

func TestHierarchyRepo_GetPriceSetting_UnpricedReturnsNil(t *testing.T) {
	db := new(mockDBTX)
	repo := NewHierarchyRepo(db)
	ctx := context.Background()

	row := &mockRow{scanErr: pgx.ErrNoRows}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	s, err := repo.GetPriceSetting(ctx, types.TokenElectricity,
		"Jakarta Selatan", "Kemang Residence", "PT Listrik Jaya")
	require.NoError(t, err)
	assert.Nil(t, s)
}

func TestHierarchyRepo_SavePriceSetting_Success(t *testing.T) {
	db := new(mockDBTX)
	repo := NewHierarchyRepo(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).
		Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := repo.SavePriceSetting(context.Background(), &types.PriceSetting{
		TokenType:  types.TokenElectricity,
		Area:       "Jakarta Selatan",
		Project:    "Kemang Residence",
		Vendor:     "PT Listrik Jaya",
		BasePrice:  "Rp 1.500",
		TaxPercent: "11%",
		AdminFee:   "2500",
		OtherCosts: "0",
	})
	require.NoError(t, err)
	db.AssertExpectations(t)
}
