package postgres_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	carrierdomain "carrier-engine/internal/features/carriers/domain"
	orderdomain "carrier-engine/internal/features/orders/domain"
	ruledomain "carrier-engine/internal/features/rules/domain"
	"carrier-engine/internal/features/shipments/domain"
	"carrier-engine/internal/storage/postgres"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	postgresdriver "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

var at = time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)

type StoreIntegrationTestSuite struct {
	suite.Suite
	container *tcpostgres.PostgresContainer
	db        *gorm.DB
	store     *postgres.Store
	carrier   *carrierdomain.Carrier
}

func TestStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping postgres integration tests in short mode")
	}
	suite.Run(t, new(StoreIntegrationTestSuite))
}

func (s *StoreIntegrationTestSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("carrier_engine"),
		tcpostgres.WithUsername("engine"),
		tcpostgres.WithPassword("engine"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	db, err := gorm.Open(postgresdriver.Open(dsn), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	s.Require().NoError(err)
	s.db = db

	s.Require().NoError(postgres.Migrate(db))
}

func (s *StoreIntegrationTestSuite) SetupTest() {
	s.Require().NoError(s.db.Exec(`TRUNCATE TABLE carriers, carrier_credentials, carrier_api_logs, carrier_zones,
		carrier_rates, pincode_rules, channel_shipping_rules, shipping_rules, orders, shipments,
		tracking_events, ndr_records`).Error)

	s.store = postgres.NewStore(s.db)
	s.carrier = &carrierdomain.Carrier{
		Name:            "Delhivery",
		Code:            "Delhivery",
		SupportsCOD:     true,
		SupportsPrepaid: true,
		Status:          carrierdomain.CarrierStatusActive,
		Priority:        5,
	}
	s.Require().NoError(s.store.Carriers.Save(context.Background(), s.carrier))
}

func (s *StoreIntegrationTestSuite) TearDownSuite() {
	if s.container != nil {
		s.Require().NoError(s.container.Terminate(context.Background()))
	}
}

func (s *StoreIntegrationTestSuite) TestCarriers() {
	ctx := context.Background()

	got, err := s.store.Carriers.GetByCode(ctx, " DELHIVERY ")
	s.Require().NoError(err)
	s.Equal(s.carrier.ID, got.ID)

	s.Require().NoError(s.store.Carriers.Save(ctx, &carrierdomain.Carrier{Code: "bluedart", Priority: 9, Status: carrierdomain.CarrierStatusInactive}))
	s.Error(s.store.Carriers.Save(ctx, &carrierdomain.Carrier{Code: "delhivery"}))

	all, err := s.store.Carriers.List(ctx)
	s.Require().NoError(err)
	s.Require().Len(all, 2)
	s.Equal("bluedart", all[0].Code)

	active, err := s.store.Carriers.ListActive(ctx)
	s.Require().NoError(err)
	s.Len(active, 1)

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func(ok bool) {
			defer wg.Done()
			s.NoError(s.store.Carriers.IncrementAPICounters(ctx, s.carrier.ID, ok, at))
		}(i%4 != 0)
	}
	wg.Wait()

	got, err = s.store.Carriers.Get(ctx, s.carrier.ID)
	s.Require().NoError(err)
	s.EqualValues(20, got.Metrics.TotalAPICalls)
	s.EqualValues(15, got.Metrics.SuccessfulAPICalls)
	s.EqualValues(5, got.Metrics.FailedAPICalls)

	_, err = s.store.Carriers.Get(ctx, "00000000-0000-0000-0000-000000000000")
	s.ErrorIs(err, carrierdomain.ErrCarrierNotFound)
}

func (s *StoreIntegrationTestSuite) TestCredentials() {
	ctx := context.Background()

	cred := &carrierdomain.Credential{
		CarrierID:   s.carrier.ID,
		Environment: carrierdomain.EnvironmentProduction,
		APIKey:      "secret",
		Config:      carrierdomain.CarrierConfig{carrierdomain.ConfigPickupLocation: "BLR-WH"},
		IsActive:    true,
	}
	s.Require().NoError(s.store.Credentials.Save(ctx, cred))

	err := s.store.Credentials.Save(ctx, &carrierdomain.Credential{
		CarrierID:   s.carrier.ID,
		Environment: carrierdomain.EnvironmentProduction,
		IsActive:    true,
	})
	s.ErrorIs(err, carrierdomain.ErrActiveCredentialExists)

	creds, err := s.store.Credentials.ListForCarrier(ctx, s.carrier.ID)
	s.Require().NoError(err)
	s.Require().Len(creds, 1)
	s.Equal("BLR-WH", creds[0].Config.PickupLocation())
}

func (s *StoreIntegrationTestSuite) TestAPILogs() {
	ctx := context.Background()

	for i := range 3 {
		s.Require().NoError(s.store.APILogs.Append(ctx, &carrierdomain.APILog{
			CarrierID:      s.carrier.ID,
			CarrierCode:    s.carrier.Code,
			CallType:       carrierdomain.APICallTrack,
			RequestHeaders: map[string]string{"Authorization": "***"},
			ReferenceID:    fmt.Sprintf("AWB%d", i),
			CreatedAt:      at.Add(time.Duration(i) * time.Minute),
		}))
	}

	logs, err := s.store.APILogs.ListForCarrier(ctx, s.carrier.ID, 2)
	s.Require().NoError(err)
	s.Require().Len(logs, 2)
	s.Equal("AWB2", logs[0].ReferenceID)
	s.Equal("***", logs[0].RequestHeaders["Authorization"])
}

func (s *StoreIntegrationTestSuite) TestRatesAndZones() {
	ctx := context.Background()

	s.Require().NoError(s.store.Rates.SaveZone(ctx, &carrierdomain.Zone{
		CarrierID: s.carrier.ID,
		Code:      "SOUTH",
		States:    []string{"KA", "TN"},
		Pincodes:  []string{"560001-560100"},
	}))
	s.Require().NoError(s.store.Rates.SaveRate(ctx, &carrierdomain.Rate{
		CarrierID:            s.carrier.ID,
		ZoneCode:             "SOUTH",
		MinWeight:            decimal.Zero,
		MaxWeight:            decimal.NewFromInt(5),
		BaseRate:             decimal.NewFromInt(50),
		PerKgRate:            decimal.NewFromInt(20),
		CODCharge:            decimal.NewFromInt(30),
		FuelSurchargePercent: decimal.NewFromInt(10),
	}))

	zones, err := s.store.Rates.ZonesForCarrier(ctx, s.carrier.ID)
	s.Require().NoError(err)
	rates, err := s.store.Rates.RatesForCarrier(ctx, s.carrier.ID)
	s.Require().NoError(err)

	quote, ok := carrierdomain.QuoteRate(rates, zones, "", "560050", decimal.NewFromInt(1), true)
	s.Require().True(ok)
	s.Equal("107", quote.String())
}

func (s *StoreIntegrationTestSuite) TestRules() {
	ctx := context.Background()

	rule := &ruledomain.PincodeRule{Pincode: "560001", CarrierID: s.carrier.ID, Priority: 1, IsActive: true}
	created, err := s.store.Rules.UpsertPincodeRule(ctx, rule)
	s.Require().NoError(err)
	s.True(created)
	firstID := rule.ID

	again := &ruledomain.PincodeRule{Pincode: "560001", CarrierID: s.carrier.ID, Priority: 7, IsActive: true}
	created, err = s.store.Rules.UpsertPincodeRule(ctx, again)
	s.Require().NoError(err)
	s.False(created)
	s.Equal(firstID, again.ID)

	rules, err := s.store.Rules.PincodeRules(ctx, "560001")
	s.Require().NoError(err)
	s.Require().Len(rules, 1)
	s.Equal(7, rules[0].Priority)

	s.Require().NoError(s.store.Rules.SaveChannelRule(ctx, &ruledomain.ChannelShippingRule{
		Channel: "Amazon", PaymentType: ruledomain.PaymentMatchAll, CarrierID: s.carrier.ID, IsActive: true,
	}))
	channel, err := s.store.Rules.ChannelRules(ctx, "amazon")
	s.Require().NoError(err)
	s.Len(channel, 1)

	s.Require().NoError(s.store.Rules.SaveShippingRule(ctx, &ruledomain.ShippingRule{
		Name: "South", Field: ruledomain.FieldState, Operator: ruledomain.OpInList,
		Value: ruledomain.List("KA", "TN"), AssignedCarrierID: s.carrier.ID, Enabled: true,
	}))
	shipping, err := s.store.Rules.ShippingRules(ctx)
	s.Require().NoError(err)
	s.Require().Len(shipping, 1)
	s.True(shipping[0].Value.IsList())
	s.Equal([]string{"KA", "TN"}, shipping[0].Value.Items())
	s.Empty(shipping[0].FallbackCarrierID)
}

func (s *StoreIntegrationTestSuite) saveOrder(id string) {
	s.Require().NoError(s.store.Orders.SaveOrder(context.Background(), &orderdomain.Order{
		ID:          id,
		OrderNumber: "#" + id,
		PaymentType: orderdomain.PaymentCOD,
		CODAmount:   500,
		Address:     orderdomain.Address{City: "Bengaluru", State: "KA", Pincode: "560001"},
		Items:       []orderdomain.OrderItem{{Quantity: 1, SKU: "TEE", Name: "Tee"}},
	}))
}

func (s *StoreIntegrationTestSuite) newShipment(orderID, awb string) *domain.Shipment {
	sh := domain.NewShipment(at)
	sh.OrderID = orderID
	sh.CarrierID = s.carrier.ID
	sh.CarrierCode = s.carrier.Code
	sh.AWBNumber = awb
	sh.TrackingNumber = awb
	sh.ShippingCost = decimal.RequireFromString("107.00")
	sh.SetDimensions(1, 10, 10, 10)
	return sh
}

func (s *StoreIntegrationTestSuite) TestSaveBooking_OneActivePerOrder() {
	ctx := context.Background()
	s.saveOrder("o1")

	first := s.newShipment("o1", "AWB1")
	assignedAt := at
	s.Require().NoError(s.store.Shipments.SaveBooking(ctx, first, orderdomain.ShippingInfo{
		ShipmentID: first.ID, CarrierCode: "delhivery", AWBNumber: "AWB1", AssignedAt: &assignedAt,
	}))

	order, err := s.store.Orders.GetOrder(ctx, "o1")
	s.Require().NoError(err)
	s.Equal("AWB1", order.Shipping.AWBNumber)
	s.Equal(first.ID, order.Shipping.ShipmentID)

	err = s.store.Shipments.SaveBooking(ctx, s.newShipment("o1", "AWB2"), orderdomain.ShippingInfo{})
	s.ErrorIs(err, domain.ErrActiveShipmentExists)

	active, err := s.store.Shipments.ActiveForOrder(ctx, "o1")
	s.Require().NoError(err)
	s.Require().NotNil(active)
	s.Equal(domain.StatusManifested, active.Status())
	s.True(active.ShippingCost.Equal(decimal.RequireFromString("107")))

	s.Require().NoError(active.MarkCancelled(at.Add(time.Hour)))
	s.Require().NoError(s.store.Shipments.UpdateStatus(ctx, active))

	active, err = s.store.Shipments.ActiveForOrder(ctx, "o1")
	s.Require().NoError(err)
	s.Nil(active)

	s.Require().NoError(s.store.Shipments.SaveBooking(ctx, s.newShipment("o1", "AWB3"), orderdomain.ShippingInfo{}))
}

func (s *StoreIntegrationTestSuite) TestSaveBooking_ExternalOrder() {
	sh := s.newShipment("woo-42", "AWB9")
	s.Require().NoError(s.store.Shipments.SaveBooking(context.Background(), sh, orderdomain.ShippingInfo{ShipmentID: sh.ID}))

	_, err := s.store.Orders.GetOrder(context.Background(), "woo-42")
	s.ErrorIs(err, orderdomain.ErrOrderNotFound)
}

func (s *StoreIntegrationTestSuite) TestTrackingUpdates() {
	ctx := context.Background()
	sh := s.newShipment("o2", "AWB5")
	s.Require().NoError(s.store.Shipments.SaveBooking(ctx, sh, orderdomain.ShippingInfo{}))

	changed, err := sh.ApplyTrackingStatus(domain.StatusPickedUp, at.Add(time.Hour))
	s.Require().NoError(err)
	s.True(changed)

	events := []domain.TrackingEvent{
		{Status: "Picked Up", MappedStatus: domain.StatusPickedUp, EventTime: at.Add(time.Hour)},
		{Status: "Manifested", MappedStatus: domain.StatusManifested, EventTime: at},
	}
	added, err := s.store.Shipments.ApplyTrackingUpdate(ctx, sh, events)
	s.Require().NoError(err)
	s.Equal(2, added)

	added, err = s.store.Shipments.ApplyTrackingUpdate(ctx, sh, events)
	s.Require().NoError(err)
	s.Equal(0, added)

	stored, err := s.store.Shipments.TrackingEvents(ctx, sh.ID)
	s.Require().NoError(err)
	s.Require().Len(stored, 2)
	s.Equal("Picked Up", stored[0].Status)

	got, err := s.store.Shipments.Get(ctx, sh.ID)
	s.Require().NoError(err)
	s.Equal(domain.StatusPickedUp, got.Status())
	s.Require().NotNil(got.PickedUpAt)

	refreshable, err := s.store.Shipments.ListRefreshable(ctx)
	s.Require().NoError(err)
	s.Len(refreshable, 1)
}

func (s *StoreIntegrationTestSuite) TestNDRAttemptNumbers() {
	ctx := context.Background()
	sh := s.newShipment("o3", "AWB7")
	s.Require().NoError(s.store.Shipments.SaveBooking(ctx, sh, orderdomain.ShippingInfo{}))

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.NoError(s.store.Shipments.CreateNDR(ctx, &domain.NDRRecord{
				ShipmentID: sh.ID,
				NDRDate:    at,
				Reason:     domain.NDRCustomerUnavailable,
			}))
		}()
	}
	wg.Wait()

	ndrs, err := s.store.Shipments.ListNDRs(ctx, sh.ID)
	s.Require().NoError(err)
	s.Require().Len(ndrs, 5)
	for i, n := range ndrs {
		s.Equal(i+1, n.AttemptNumber)
	}

	first := ndrs[0]
	s.Require().NoError(first.ApplyAction(domain.NDRActionInput{Action: domain.NDRActionReattempt, Resolve: true}, "ops", at))
	s.Require().NoError(s.store.Shipments.UpdateNDR(ctx, &first))

	got, err := s.store.Shipments.GetNDR(ctx, first.ID)
	s.Require().NoError(err)
	s.True(got.IsResolved)
	s.Equal("ops", got.ActionBy)

	err = s.store.Shipments.CreateNDR(ctx, &domain.NDRRecord{ShipmentID: "00000000-0000-0000-0000-000000000000", Reason: domain.NDROther})
	s.ErrorIs(err, domain.ErrShipmentNotFound)
}
