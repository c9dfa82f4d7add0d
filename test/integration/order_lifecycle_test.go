package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/suite"

	"github.com/vladislavdragonenkov/stockorders/internal/domain"
	"github.com/vladislavdragonenkov/stockorders/internal/service/accounts"
	"github.com/vladislavdragonenkov/stockorders/internal/service/catalog"
	"github.com/vladislavdragonenkov/stockorders/internal/service/orders"
	"github.com/vladislavdragonenkov/stockorders/internal/service/outbox"
	"github.com/vladislavdragonenkov/stockorders/internal/storage/memory"
	"github.com/vladislavdragonenkov/stockorders/internal/transport/httpapi"
)

type orderView struct {
	ID          int64   `json:"id"`
	Quantity    int     `json:"quantity"`
	Status      string  `json:"status"`
	TotalAmount float64 `json:"totalAmount"`
	Product     struct {
		Stock int `json:"stock"`
	} `json:"product"`
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.OutboxMessage
}

func (p *recordingPublisher) Publish(event domain.OutboxMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return nil
}

// OrderLifecycleTestSuite проверяет жизненный цикл заказа через HTTP API.
type OrderLifecycleTestSuite struct {
	suite.Suite
	store  *memory.Store
	server *httptest.Server
	logger *log.Entry
}

func (s *OrderLifecycleTestSuite) SetupTest() {
	baseLogger := log.New()
	baseLogger.SetLevel(log.WarnLevel)
	s.logger = baseLogger.WithField("component", "integration-test")

	s.store = memory.NewStore()
	s.server = httptest.NewServer(httpapi.NewRouter(httpapi.Config{
		Orders:   orders.NewEngine(s.store, orders.WithLogger(s.logger)),
		Products: catalog.NewService(s.store, s.logger),
		Users:    accounts.NewService(s.store, s.logger),
		Logger:   s.logger,
	}))

	s.call(http.MethodPost, "/users", `{"username":"alice","email":"alice@example.com"}`, http.StatusCreated)
	s.call(http.MethodPost, "/products", `{"name":"Widget","description":"blue","price":100.0,"stock":50}`, http.StatusCreated)
}

func (s *OrderLifecycleTestSuite) TearDownTest() {
	s.server.Close()
}

func (s *OrderLifecycleTestSuite) call(method, path, body string, wantStatus int) []byte {
	req, err := http.NewRequest(method, s.server.URL+path, strings.NewReader(body))
	s.Require().NoError(err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.server.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	s.Require().Equal(wantStatus, resp.StatusCode, string(data))
	return data
}

func (s *OrderLifecycleTestSuite) order(method, path string) orderView {
	var view orderView
	s.Require().NoError(json.Unmarshal(s.call(method, path, "", http.StatusOK), &view))
	return view
}

func (s *OrderLifecycleTestSuite) TestCreateUpdateCancel() {
	created := s.order(http.MethodPost, "/orders?userId=1&productId=1&quantity=5")
	s.Equal(500.0, created.TotalAmount)
	s.Equal(45, created.Product.Stock)

	updated := s.order(http.MethodPut, fmt.Sprintf("/orders/%d/quantity?newQuantity=4", created.ID))
	s.Equal(400.0, updated.TotalAmount)
	s.Equal(46, updated.Product.Stock)

	canceled := s.order(http.MethodDelete, fmt.Sprintf("/orders/%d/cancel", created.ID))
	s.Equal("CANCELED", canceled.Status)
	s.Equal(50, canceled.Product.Stock)

	body := s.call(http.MethodPut, fmt.Sprintf("/orders/%d/quantity?newQuantity=2", created.ID), "", http.StatusBadRequest)
	s.Equal(domain.MsgOnlyPendingCanUpdate, string(body))
}

func (s *OrderLifecycleTestSuite) TestConcurrentOrdersNeverOversell() {
	const workers = 20

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			resp, err := s.server.Client().Post(s.server.URL+"/orders?userId=1&productId=1&quantity=5", "application/json", nil)
			if err != nil {
				return
			}
			_ = resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				mu.Lock()
				accepted++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	s.LessOrEqual(accepted, 10)
	s.Positive(accepted)

	var product struct {
		Stock int `json:"stock"`
	}
	s.Require().NoError(json.Unmarshal(s.call(http.MethodGet, "/products/1", "", http.StatusOK), &product))
	s.Equal(50-5*accepted, product.Stock)
}

func (s *OrderLifecycleTestSuite) TestEventsReachPublisher() {
	created := s.order(http.MethodPost, "/orders?userId=1&productId=1&quantity=1")
	s.order(http.MethodDelete, fmt.Sprintf("/orders/%d/cancel", created.ID))

	publisher := &recordingPublisher{}
	worker := outbox.NewWorker(s.store.Outbox(), publisher, outbox.WithLogger(s.logger))
	s.Equal(outbox.BatchResult{Sent: 2}, worker.ProcessOnce(context.Background()))

	s.Require().Len(publisher.events, 2)
	s.Equal(domain.EventOrderCreated, publisher.events[0].EventType)
	s.Equal(domain.EventOrderCanceled, publisher.events[1].EventType)
	s.Equal(fmt.Sprint(created.ID), publisher.events[0].AggregateID)
}

func TestOrderLifecycleTestSuite(t *testing.T) {
	suite.Run(t, new(OrderLifecycleTestSuite))
}
