package pricing

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tokenpoint/internal/types"
)

// --- In-memory stores ---

type fakeHierarchyStore struct {
	hierarchies map[types.TokenType]*types.AreaHierarchy
	settings    map[string]*types.PriceSetting
	err         error
}

func settingKey(t types.TokenType, area, project, vendor string) string {
	return string(t) + "/" + area + "/" + project + "/" + vendor
}

func (f *fakeHierarchyStore) GetHierarchy(_ context.Context, tokenType types.TokenType) (*types.AreaHierarchy, error) {
	if f.err != nil {
		return nil, f.err
	}
	if h, ok := f.hierarchies[tokenType]; ok {
		return h, nil
	}
	return &types.AreaHierarchy{TokenType: tokenType}, nil
}

func (f *fakeHierarchyStore) GetPriceSetting(_ context.Context, tokenType types.TokenType, area, project, vendor string) (*types.PriceSetting, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.settings[settingKey(tokenType, area, project, vendor)], nil
}

type fakeVendorRegistry struct {
	vendors map[string]*types.VendorRecord
	err     error
}

func (f *fakeVendorRegistry) GetVendorByName(_ context.Context, name string) (*types.VendorRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.vendors[name], nil
}

func testStores() (*fakeHierarchyStore, *fakeVendorRegistry) {
	hs := &fakeHierarchyStore{
		hierarchies: map[types.TokenType]*types.AreaHierarchy{
			types.TokenElectricity: {
				TokenType: types.TokenElectricity,
				Areas: []types.Area{
					{
						Name: "Jakarta Selatan",
						Projects: []types.Project{
							{
								Name:    "Kemang Residence",
								Vendors: []types.VendorRef{{Name: "PT Listrik Jaya"}, {Name: "PT Ghost Power"}},
							},
						},
					},
				},
			},
		},
		settings: map[string]*types.PriceSetting{
			settingKey(types.TokenElectricity, "Jakarta Selatan", "Kemang Residence", "PT Listrik Jaya"): {
				TokenType:  types.TokenElectricity,
				Area:       "Jakarta Selatan",
				Project:    "Kemang Residence",
				Vendor:     "PT Listrik Jaya",
				BasePrice:  "1450",
				TaxPercent: "11",
				AdminFee:   "2500",
				OtherCosts: "0",
			},
		},
	}
	vr := &fakeVendorRegistry{
		vendors: map[string]*types.VendorRecord{
			"PT Listrik Jaya": {
				ID:              "vnd_1",
				Name:            "PT Listrik Jaya",
				HandledServices: []types.TokenType{types.TokenElectricity},
			},
			"PT Air Bersih": {
				ID:              "vnd_2",
				Name:            "PT Air Bersih",
				HandledServices: []types.TokenType{types.TokenWater},
			},
			// "PT Ghost Power" is deliberately absent: it exists only in the
			// hierarchy, simulating registry/hierarchy drift.
		},
	}
	return hs, vr
}

func TestResolvePrice_Configured(t *testing.T) {
	hs, vr := testStores()
	r := NewResolver(hs, vr, nil)

	res, err := r.ResolvePrice(context.Background(), types.TokenElectricity, "Jakarta Selatan", "Kemang Residence", "PT Listrik Jaya")
	require.NoError(t, err)

	assert.Equal(t, OutcomeConfigured, res.Outcome)
	assert.Equal(t, types.Rupiah(2500), res.Tuple.AdminFee.Value)
	assert.Equal(t, 11.0, res.Tuple.TaxPercent.Value)
}

func TestResolvePrice_MissingNodesAreNotConfigured(t *testing.T) {
	hs, vr := testStores()
	r := NewResolver(hs, vr, nil)
	ctx := context.Background()

	tests := []struct {
		name                         string
		tokenType                    types.TokenType
		area, project, vendor        string
	}{
		{"unknown token type", types.TokenGas, "Jakarta Selatan", "Kemang Residence", "PT Listrik Jaya"},
		{"unknown area", types.TokenElectricity, "Bandung", "Kemang Residence", "PT Listrik Jaya"},
		{"unknown project", types.TokenElectricity, "Jakarta Selatan", "Menteng Tower", "PT Listrik Jaya"},
		{"vendor not under project", types.TokenElectricity, "Jakarta Selatan", "Kemang Residence", "PT Air Bersih"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, err := r.ResolvePrice(ctx, tt.tokenType, tt.area, tt.project, tt.vendor)
			require.NoError(t, err, "missing nodes must never be errors")
			assert.Equal(t, OutcomeNotConfigured, res.Outcome)
			assert.NotEmpty(t, res.Reason)
		})
	}
}

func TestResolvePrice_UnpricedPathIsNotConfigured(t *testing.T) {
	hs, vr := testStores()
	// Make the ghost vendor legitimate but leave its path unpriced.
	vr.vendors["PT Ghost Power"] = &types.VendorRecord{
		ID:              "vnd_3",
		Name:            "PT Ghost Power",
		HandledServices: []types.TokenType{types.TokenElectricity},
	}
	r := NewResolver(hs, vr, nil)

	res, err := r.ResolvePrice(context.Background(), types.TokenElectricity, "Jakarta Selatan", "Kemang Residence", "PT Ghost Power")
	require.NoError(t, err)
	assert.Equal(t, OutcomeNotConfigured, res.Outcome)
}

func TestResolvePrice_RegistryDriftIsInvalidConfiguration(t *testing.T) {
	hs, vr := testStores()
	r := NewResolver(hs, vr, nil)
	ctx := context.Background()

	// In the hierarchy but absent from the registry.
	res, err := r.ResolvePrice(ctx, types.TokenElectricity, "Jakarta Selatan", "Kemang Residence", "PT Ghost Power")
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalidConfiguration, res.Outcome)

	// Registered, under the project, but not authorized for the token type.
	hs.hierarchies[types.TokenElectricity].Areas[0].Projects[0].Vendors = append(
		hs.hierarchies[types.TokenElectricity].Areas[0].Projects[0].Vendors,
		types.VendorRef{Name: "PT Air Bersih"},
	)
	res, err = r.ResolvePrice(ctx, types.TokenElectricity, "Jakarta Selatan", "Kemang Residence", "PT Air Bersih")
	require.NoError(t, err)
	assert.Equal(t, OutcomeInvalidConfiguration, res.Outcome)
}

func TestResolvePrice_StoreErrorIsAnError(t *testing.T) {
	hs, vr := testStores()
	hs.err = errors.New("connection refused")
	r := NewResolver(hs, vr, nil)

	_, err := r.ResolvePrice(context.Background(), types.TokenElectricity, "Jakarta Selatan", "Kemang Residence", "PT Listrik Jaya")
	require.Error(t, err)
}

func validService() *types.CustomerService {
	return &types.CustomerService{
		ServiceID:         "svc_1",
		TokenType:         types.TokenElectricity,
		Area:              "Jakarta Selatan",
		Project:           "Kemang Residence",
		VendorName:        "PT Listrik Jaya",
		PowerOrVolume:     "1300VA",
		MeterID:           "14012345678",
		TransactionActive: true,
	}
}

func TestServiceStatus(t *testing.T) {
	hs, vr := testStores()
	r := NewResolver(hs, vr, nil)
	ctx := context.Background()

	t.Run("configured path is ok", func(t *testing.T) {
		status, _, err := r.ServiceStatus(ctx, validService(), true)
		require.NoError(t, err)
		assert.Equal(t, types.ServiceOK, status)
	})

	t.Run("inactive customer wins over configuration", func(t *testing.T) {
		status, _, err := r.ServiceStatus(ctx, validService(), false)
		require.NoError(t, err)
		assert.Equal(t, types.ServiceInactive, status)
	})

	t.Run("inactive service", func(t *testing.T) {
		svc := validService()
		svc.TransactionActive = false
		status, _, err := r.ServiceStatus(ctx, svc, true)
		require.NoError(t, err)
		assert.Equal(t, types.ServiceInactive, status)
	})

	t.Run("incomplete fields need configuration", func(t *testing.T) {
		svc := validService()
		svc.VendorName = ""
		status, _, err := r.ServiceStatus(ctx, svc, true)
		require.NoError(t, err)
		assert.Equal(t, types.ServiceNeedsConfiguration, status)
	})

	t.Run("missing path needs configuration", func(t *testing.T) {
		svc := validService()
		svc.Area = "Bandung"
		status, reason, err := r.ServiceStatus(ctx, svc, true)
		require.NoError(t, err)
		assert.Equal(t, types.ServiceNeedsConfiguration, status)
		assert.NotEmpty(t, reason)
	})

	t.Run("registry drift is a hard error status", func(t *testing.T) {
		svc := validService()
		svc.VendorName = "PT Ghost Power"
		status, _, err := r.ServiceStatus(ctx, svc, true)
		require.NoError(t, err)
		assert.Equal(t, types.ServiceError, status)
	})
}
