package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"

	"github.com/BearBump/ShipWatch/internal/broker/messages"
	"github.com/BearBump/ShipWatch/internal/integrations/vendorapi"
	"github.com/BearBump/ShipWatch/internal/models"
	"github.com/BearBump/ShipWatch/internal/notify"
	"github.com/BearBump/ShipWatch/internal/services/progress"
)

// Dispatcher отправляет, правит и удаляет уведомления (см. пакет notify).
type Dispatcher interface {
	Dispatch(ctx context.Context, text string, phase notify.Phase) (notify.MessageRef, error)
	Update(ctx context.Context, ref notify.MessageRef, text string) error
	Remove(ctx context.Context, ref notify.MessageRef) error
}

// Producer публикует события жизненного цикла в брокер.
type Producer interface {
	Publish(ctx context.Context, topic string, key, value []byte) error
}

// RateLimiter ограничивает частоту запросов к API WB.
type RateLimiter interface {
	Allow(ctx context.Context, key string, limit int64, window time.Duration) (bool, int64, error)
}

// Каждые N итераций discovery токен перепроверяется: WB тихо
// протухает сессии без явного сигнала.
const reauthEvery = 30

// Manager запускает и останавливает мониторинг аккаунтов. На аккаунт —
// две горутины: discovery ищет новые поставки, refresh обновляет уже
// отслеживаемые.
type Manager struct {
	client     vendor.Client
	dispatcher Dispatcher

	events Producer // опционально: зеркало событий в Kafka
	topic  string

	rl          RateLimiter // опционально
	rlPerMinute int64

	mu       sync.Mutex
	accounts map[string]AccountConfig
	running  map[string]*accountRun

	startedAt time.Time

	totalDiscovered atomic.Int64
	totalUpdated    atomic.Int64
	totalCompleted  atomic.Int64
	totalEvicted    atomic.Int64
	totalErrors     atomic.Int64

	lastErrorMu sync.Mutex
	lastError   string
}

type accountRun struct {
	session *Session
	cancel  context.CancelFunc
	done    chan struct{}
}

func New(client vendor.Client, dispatcher Dispatcher, accounts []AccountConfig) *Manager {
	m := &Manager{
		client:     client,
		dispatcher: dispatcher,
		accounts:   make(map[string]AccountConfig, len(accounts)),
		running:    make(map[string]*accountRun),
		startedAt:  time.Now().UTC(),
	}
	for _, a := range accounts {
		if a.CheckInterval <= 0 {
			a.CheckInterval = 10 * time.Second
		}
		if a.RefreshInterval <= 0 {
			a.RefreshInterval = 60 * time.Second
		}
		if a.InactivityTimeout <= 0 {
			a.InactivityTimeout = 5 * time.Minute
		}
		m.accounts[a.ID] = a
	}
	return m
}

// WithEvents включает публикацию ShipmentEvent в указанный топик.
func (m *Manager) WithEvents(p Producer, topic string) *Manager {
	m.events = p
	m.topic = topic
	return m
}

// WithRateLimiter включает ограничение частоты обращений к API.
func (m *Manager) WithRateLimiter(rl RateLimiter, perMinute int64) *Manager {
	m.rl = rl
	m.rlPerMinute = perMinute
	return m
}

func (m *Manager) AccountIDs() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.accounts))
	for id := range m.accounts {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Start запускает мониторинг аккаунта. Повторный запуск уже работающего
// аккаунта и запуск неизвестного аккаунта возвращают false.
func (m *Manager) Start(ctx context.Context, accountID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	cfg, ok := m.accounts[accountID]
	if !ok {
		return false
	}
	if _, ok := m.running[accountID]; ok {
		return false
	}

	runCtx, cancel := context.WithCancel(ctx)
	run := &accountRun{
		session: NewSession(cfg, time.Now()),
		cancel:  cancel,
		done:    make(chan struct{}),
	}
	m.running[accountID] = run
	go m.runAccount(runCtx, run)

	slog.Info("monitoring started", "account", accountID)
	return true
}

func (m *Manager) runAccount(ctx context.Context, run *accountRun) {
	defer close(run.done)
	s := run.session

	// Без рабочего токена циклы крутить бессмысленно.
	if err := m.authenticate(ctx, s); err != nil {
		slog.Error("initial authentication failed",
			"account", s.cfg.ID, "error", err.Error())
		m.noteError(err)
		m.mu.Lock()
		if m.running[s.cfg.ID] == run {
			delete(m.running, s.cfg.ID)
		}
		m.mu.Unlock()
		return
	}

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		m.discoveryLoop(ctx, s)
	}()
	go func() {
		defer wg.Done()
		m.refreshLoop(ctx, s)
	}()
	wg.Wait()
}

// Stop останавливает мониторинг аккаунта и дожидается завершения его горутин.
func (m *Manager) Stop(accountID string) bool {
	m.mu.Lock()
	run, ok := m.running[accountID]
	if ok {
		delete(m.running, accountID)
	}
	m.mu.Unlock()
	if !ok {
		return false
	}

	run.cancel()
	<-run.done
	slog.Info("monitoring stopped", "account", accountID)
	return true
}

func (m *Manager) StopAll() {
	m.mu.Lock()
	runs := m.running
	m.running = make(map[string]*accountRun)
	m.mu.Unlock()

	for id, run := range runs {
		run.cancel()
		<-run.done
		slog.Info("monitoring stopped", "account", id)
	}
}

func (m *Manager) Active(accountID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.running[accountID]
	return ok
}

func (m *Manager) authenticate(ctx context.Context, s *Session) error {
	if s.cfg.Token == "" {
		return errors.New("no token configured")
	}
	if err := m.client.VerifyToken(ctx, s.cfg.Token); err != nil {
		return errors.Wrap(err, "verify token")
	}
	s.SetBearer(s.cfg.Token)
	return nil
}

func (m *Manager) discoveryLoop(ctx context.Context, s *Session) {
	slog.Info("discovery loop started",
		"account", s.cfg.ID, "interval", s.cfg.RefreshInterval.String())

	t := time.NewTicker(s.cfg.RefreshInterval)
	defer t.Stop()

	iteration := 0
	for {
		if iteration >= reauthEvery {
			if err := m.authenticate(ctx, s); err != nil {
				slog.Warn("token refresh failed",
					"account", s.cfg.ID, "error", err.Error())
			}
			iteration = 0
		}
		m.discoverOnce(ctx, s)
		iteration++

		select {
		case <-ctx.Done():
			slog.Info("discovery loop stopped", "account", s.cfg.ID)
			return
		case <-t.C:
		}
	}
}

func (m *Manager) discoverOnce(ctx context.Context, s *Session) {
	shipments, err := m.client.ActiveShipments(ctx, s.Bearer(), vendor.ShipmentsQuery{
		SupplierID: s.cfg.SupplierID,
		OfficeIDs:  s.cfg.OfficeIDs,
	})
	if err != nil {
		if errors.Is(err, vendor.ErrUnauthorized) {
			slog.Warn("shipments fetch unauthorized, re-authenticating", "account", s.cfg.ID)
			if err := m.authenticate(ctx, s); err != nil {
				m.noteError(err)
				slog.Error("re-authentication failed",
					"account", s.cfg.ID, "error", err.Error())
			}
			return
		}
		m.noteError(err)
		slog.Error("fetch active shipments", "account", s.cfg.ID, "error", err.Error())
		return
	}

	for _, sh := range shipments {
		if ctx.Err() != nil {
			return
		}
		if sh.ID == 0 {
			continue
		}
		if s.Seen(sh.ID) {
			continue
		}
		if !isNewShipment(sh, s.StartedAt()) {
			continue
		}
		if err := m.handleDiscovered(ctx, s, sh); err != nil {
			m.noteError(err)
			slog.Error("process discovered shipment",
				"account", s.cfg.ID, "shipment_id", sh.ID, "error", err.Error())
		}
	}
}

// isNewShipment отсекает поставки, созданные до старта мониторинга:
// исторический хвост не интересен, уведомляем только о новых.
func isNewShipment(sh *models.Shipment, startedAt time.Time) bool {
	if startedAt.IsZero() {
		return true
	}
	if sh.CreatedAt == nil {
		return false
	}
	return sh.CreatedAt.After(startedAt)
}

func (m *Manager) handleDiscovered(ctx context.Context, s *Session, sh *models.Shipment) error {
	m.throttle(ctx, s)
	details, err := m.client.ShipmentDetails(ctx, s.Bearer(), sh.ID)
	if err != nil {
		return errors.Wrap(err, "shipment details")
	}
	if details.OfficeID == 0 {
		details.OfficeID = sh.OfficeID
	}
	snap := progress.Calculate(details)

	if models.IsTerminalState(details.State) {
		// Поставка закрылась раньше, чем мы её увидели: сразу в архив,
		// фазу активного отслеживания пропускаем.
		if _, err := m.dispatcher.Dispatch(ctx, FormatCompleted(s.cfg.Name, snap), notify.PhaseCompleted); err != nil {
			slog.Error("dispatch completed notification",
				"account", s.cfg.ID, "shipment_id", details.ID, "error", err.Error())
		}
		s.MarkTerminal(details.ID)
		m.totalCompleted.Add(1)
		m.publish(ctx, eventFrom(s, snap, messages.EventCompleted, details.OfficeID))
		slog.Info("shipment completed on discovery",
			"account", s.cfg.ID, "shipment_id", details.ID, "state", details.State)
		return nil
	}

	ref, err := m.dispatcher.Dispatch(ctx, FormatActive(s.cfg.Name, snap), notify.PhaseActive)
	if err != nil {
		// Уведомление потеряно, поставку не трекаем: подберём на следующем круге.
		return errors.Wrap(err, "dispatch active notification")
	}
	s.Track(details.ID, details, snap, ref)
	m.totalDiscovered.Add(1)
	m.publish(ctx, eventFrom(s, snap, messages.EventDiscovered, details.OfficeID))
	slog.Info("shipment tracked",
		"account", s.cfg.ID, "shipment_id", details.ID, "state", details.State)
	return nil
}

func (m *Manager) refreshLoop(ctx context.Context, s *Session) {
	slog.Info("refresh loop started",
		"account", s.cfg.ID, "interval", s.cfg.CheckInterval.String())

	t := time.NewTicker(s.cfg.CheckInterval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("refresh loop stopped", "account", s.cfg.ID)
			return
		case <-t.C:
			m.refreshOnce(ctx, s)
		}
	}
}

func (m *Manager) refreshOnce(ctx context.Context, s *Session) {
	for _, id := range s.MonitoredIDs() {
		if ctx.Err() != nil {
			return
		}
		if s.Completed(id) {
			continue
		}
		if la, ok := s.LastActivity(id); ok && time.Since(la) > s.cfg.InactivityTimeout {
			// Прогресс молчит дольше таймаута: выселяем без уведомления.
			// Поставка не терминальная, discovery может открыть её заново.
			s.Evict(id)
			m.totalEvicted.Add(1)
			m.publish(ctx, messages.ShipmentEvent{
				AccountID:   s.cfg.ID,
				AccountName: s.cfg.Name,
				ShipmentID:  id,
				Kind:        messages.EventEvicted,
			})
			slog.Info("shipment evicted", "account", s.cfg.ID, "shipment_id", id)
			continue
		}
		if err := m.refreshShipment(ctx, s, id); err != nil {
			m.noteError(err)
			slog.Error("refresh shipment",
				"account", s.cfg.ID, "shipment_id", id, "error", err.Error())
		}
	}
}

func (m *Manager) refreshShipment(ctx context.Context, s *Session, id uint64) error {
	m.throttle(ctx, s)
	details, err := m.client.ShipmentDetails(ctx, s.Bearer(), id)
	if err != nil {
		return errors.Wrap(err, "shipment details")
	}
	s.UpdateShipment(id, details)
	snap := progress.Calculate(details)

	if models.IsTerminalState(details.State) {
		if _, err := m.dispatcher.Dispatch(ctx, FormatCompleted(s.cfg.Name, snap), notify.PhaseCompleted); err != nil {
			slog.Error("dispatch completed notification",
				"account", s.cfg.ID, "shipment_id", id, "error", err.Error())
		}
		if ref, ok := s.MessageRef(id); ok {
			// Live-сообщение больше не нужно; удаление — best effort.
			if err := m.dispatcher.Remove(ctx, ref); err != nil {
				slog.Warn("delete active notification",
					"account", s.cfg.ID, "shipment_id", id, "error", err.Error())
			}
		}
		s.MarkTerminal(id)
		m.totalCompleted.Add(1)
		m.publish(ctx, eventFrom(s, snap, messages.EventCompleted, details.OfficeID))
		slog.Info("shipment completed",
			"account", s.cfg.ID, "shipment_id", id, "state", details.State)
		return nil
	}

	if !s.HasChanged(id, snap) {
		return nil
	}
	ref, ok := s.MessageRef(id)
	if !ok {
		return nil
	}
	if err := m.dispatcher.Update(ctx, ref, FormatActive(s.cfg.Name, snap)); err != nil {
		// Снимок не фиксируем: изменение не считается доставленным,
		// следующий тик попробует ещё раз.
		return errors.Wrap(err, "update active notification")
	}
	s.CommitProgress(id, snap)
	m.totalUpdated.Add(1)
	m.publish(ctx, eventFrom(s, snap, messages.EventUpdated, details.OfficeID))
	return nil
}

// throttle придерживает запрос, когда лимит обращений к WB за текущую
// минуту исчерпан. Ошибка лимитера не блокирует опрос.
func (m *Manager) throttle(ctx context.Context, s *Session) {
	if m.rl == nil || m.rlPerMinute <= 0 {
		return
	}
	key := fmt.Sprintf("rl:wb:%s:%s", s.cfg.ID, time.Now().UTC().Format("200601021504"))
	allowed, n, err := m.rl.Allow(ctx, key, m.rlPerMinute, 70*time.Second)
	if err != nil {
		slog.Warn("rate limiter unavailable", "error", err.Error())
		return
	}
	if !allowed {
		slog.Warn("rate limit exceeded", "account", s.cfg.ID, "count", n)
		select {
		case <-ctx.Done():
		case <-time.After(500 * time.Millisecond):
		}
	}
}

func eventFrom(s *Session, snap progress.Snapshot, kind string, officeID int64) messages.ShipmentEvent {
	return messages.ShipmentEvent{
		AccountID:      s.cfg.ID,
		AccountName:    s.cfg.Name,
		ShipmentID:     snap.ShipmentID,
		Kind:           kind,
		State:          snap.State,
		OfficeID:       officeID,
		MaxBoxes:       snap.MaxBoxes,
		MaxItems:       snap.MaxItems,
		ScannedBoxes:   snap.ScannedBoxes,
		ScannedItems:   snap.ScannedItems,
		RemainingItems: snap.RemainingItems,
		BoxPercent:     snap.BoxPercent,
		ItemPercent:    snap.ItemPercent,
	}
}

// publish — best effort: журнал вторичен относительно уведомлений,
// недоступный брокер мониторинг не останавливает.
func (m *Manager) publish(ctx context.Context, ev messages.ShipmentEvent) {
	if m.events == nil {
		return
	}
	ev.OccurredAt = time.Now().UTC()
	b, err := json.Marshal(ev)
	if err != nil {
		return
	}
	key := []byte(fmt.Sprintf("%s:%d", ev.AccountID, ev.ShipmentID))
	if err := m.events.Publish(ctx, m.topic, key, b); err != nil {
		slog.Warn("publish shipment event", "kind", ev.Kind, "error", err.Error())
	}
}

func (m *Manager) noteError(err error) {
	m.totalErrors.Add(1)
	m.lastErrorMu.Lock()
	m.lastError = err.Error()
	m.lastErrorMu.Unlock()
}

// Stats — срез счётчиков для ops-эндпоинта.
type Stats struct {
	StartedAt        time.Time `json:"startedAt"`
	RunningAccounts  []string  `json:"runningAccounts"`
	TrackedShipments int       `json:"trackedShipments"`

	TotalDiscovered int64 `json:"totalDiscovered"`
	TotalUpdated    int64 `json:"totalUpdated"`
	TotalCompleted  int64 `json:"totalCompleted"`
	TotalEvicted    int64 `json:"totalEvicted"`
	TotalErrors     int64 `json:"totalErrors"`

	LastError string `json:"lastError,omitempty"`
}

func (m *Manager) Stats() Stats {
	m.mu.Lock()
	running := make([]string, 0, len(m.running))
	tracked := 0
	for id, run := range m.running {
		running = append(running, id)
		tracked += run.session.TrackedCount()
	}
	m.mu.Unlock()
	sort.Strings(running)

	m.lastErrorMu.Lock()
	lastErr := m.lastError
	m.lastErrorMu.Unlock()

	return Stats{
		StartedAt:        m.startedAt,
		RunningAccounts:  running,
		TrackedShipments: tracked,
		TotalDiscovered:  m.totalDiscovered.Load(),
		TotalUpdated:     m.totalUpdated.Load(),
		TotalCompleted:   m.totalCompleted.Load(),
		TotalEvicted:     m.totalEvicted.Load(),
		TotalErrors:      m.totalErrors.Load(),
		LastError:        lastErr,
	}
}
