package monitor

import (
	"sync"
	"time"

	"github.com/BearBump/ShipWatch/internal/models"
	"github.com/BearBump/ShipWatch/internal/notify"
	"github.com/BearBump/ShipWatch/internal/services/progress"
)

// AccountConfig — статическая конфигурация одного аккаунта поставщика.
type AccountConfig struct {
	ID         string
	Name       string
	Token      string
	SupplierID int64
	OfficeIDs  []int64

	CheckInterval     time.Duration // период refresh-цикла
	RefreshInterval   time.Duration // период discovery-цикла
	InactivityTimeout time.Duration // выселение «молчащих» поставок
}

// ShipmentLifecycle — явное состояние поставки внутри сессии.
// Terminal — поглощающее: из него поставка больше не выходит.
type ShipmentLifecycle int

const (
	LifecycleUnseen ShipmentLifecycle = iota
	LifecycleActive
	LifecycleTerminal
)

// Session владеет всем изменяемым состоянием мониторинга одного аккаунта.
// Обе горутины аккаунта (discovery и refresh) работают с одной сессией,
// поэтому карты закрыты одним мьютексом. Инвариант: discovery только
// добавляет новые ключи, refresh трогает только уже добавленные; мьютекс
// никогда не удерживается через сетевой вызов.
type Session struct {
	cfg       AccountConfig
	startedAt time.Time

	mu           sync.Mutex
	bearer       string
	authAt       time.Time
	processed    map[uint64]struct{}
	completed    map[uint64]struct{}
	monitored    map[uint64]*models.Shipment
	lastProgress map[uint64]progress.Snapshot
	messageRefs  map[uint64]notify.MessageRef
	lastActivity map[uint64]time.Time
}

func NewSession(cfg AccountConfig, startedAt time.Time) *Session {
	return &Session{
		cfg:          cfg,
		startedAt:    startedAt,
		processed:    make(map[uint64]struct{}),
		completed:    make(map[uint64]struct{}),
		monitored:    make(map[uint64]*models.Shipment),
		lastProgress: make(map[uint64]progress.Snapshot),
		messageRefs:  make(map[uint64]notify.MessageRef),
		lastActivity: make(map[uint64]time.Time),
	}
}

func (s *Session) Config() AccountConfig { return s.cfg }

// StartedAt — момент старта мониторинга; поставки, созданные раньше,
// discovery не подхватывает.
func (s *Session) StartedAt() time.Time { return s.startedAt }

func (s *Session) SetBearer(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.bearer = token
	s.authAt = time.Now().UTC()
}

func (s *Session) Bearer() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bearer
}

func (s *Session) Lifecycle(id uint64) ShipmentLifecycle {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.completed[id]; ok {
		return LifecycleTerminal
	}
	if _, ok := s.monitored[id]; ok {
		return LifecycleActive
	}
	return LifecycleUnseen
}

// Seen гасит двойные уведомления: поставка уже обработана как завершённая
// либо прямо сейчас отслеживается. Выселенная (не терминальная) поставка
// сюда не попадает и может быть открыта заново.
func (s *Session) Seen(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.processed[id]; ok {
		return true
	}
	_, ok := s.monitored[id]
	return ok
}

func (s *Session) Completed(id uint64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.completed[id]
	return ok
}

// Track заводит поставку в активное отслеживание: деталь, снимок прогресса,
// ссылка на live-сообщение, отметка активности.
func (s *Session) Track(id uint64, sh *models.Shipment, snap progress.Snapshot, ref notify.MessageRef) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.monitored[id] = sh
	s.lastProgress[id] = snap
	s.messageRefs[id] = ref
	s.lastActivity[id] = time.Now()
}

// MarkTerminal переводит поставку в поглощающее терминальное состояние.
func (s *Session) MarkTerminal(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed[id] = struct{}{}
	s.completed[id] = struct{}{}
	delete(s.monitored, id)
	delete(s.lastActivity, id)
	delete(s.messageRefs, id)
}

// Evict снимает поставку с отслеживания без уведомления и без попадания
// в completed: если WB снова покажет её открытой, discovery подхватит заново.
func (s *Session) Evict(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.monitored, id)
	delete(s.lastActivity, id)
}

func (s *Session) UpdateShipment(id uint64, sh *models.Shipment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.monitored[id]; ok {
		s.monitored[id] = sh
	}
}

// MonitoredIDs возвращает срез ключей: refresh идёт по снимку,
// чтобы не держать мьютекс через сетевые вызовы.
func (s *Session) MonitoredIDs() []uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]uint64, 0, len(s.monitored))
	for id := range s.monitored {
		ids = append(ids, id)
	}
	return ids
}

// HasChanged сверяет текущий снимок с последним зафиксированным.
// Хранилище не мутирует: фиксация — отдельный CommitProgress после
// успешной доставки уведомления.
func (s *Session) HasChanged(id uint64, cur progress.Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	last, ok := s.lastProgress[id]
	if !ok {
		return true
	}
	return Changed(cur, last)
}

func (s *Session) CommitProgress(id uint64, snap progress.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastProgress[id] = snap
	s.lastActivity[id] = time.Now()
}

func (s *Session) LastActivity(id uint64) (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.lastActivity[id]
	return t, ok
}

func (s *Session) MessageRef(id uint64) (notify.MessageRef, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref, ok := s.messageRefs[id]
	return ref, ok
}

func (s *Session) TrackedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.monitored)
}

func (s *Session) CompletedCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.completed)
}
