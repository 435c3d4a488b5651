package feed

import (
	"encoding/json"
	"log"
	"math"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Multiplexer owns one websocket connection to the market data feed and fans
// incoming kline/ticker events out to any number of listeners. Streams are
// reference counted: many logical subscribers share one wire subscription,
// and the control message goes out only on the 0->1 and 1->0 transitions.
type Multiplexer struct {
	URL          string
	MaxReconnect int

	dialer *websocket.Dialer

	// writeMu serializes wire writes; gorilla/websocket allows at most one
	// concurrent writer per connection.
	writeMu sync.Mutex

	mu         sync.Mutex
	conn       *websocket.Conn
	connecting bool
	stopped    bool // set by Disconnect; suppresses automatic reconnects
	attempts   int
	msgID      int64
	refs       map[string]int

	cbMu       sync.RWMutex
	nextCb     int
	klineSubs  map[int]func(Candle)
	tickerSubs map[int]func(Ticker)

	// sendFn writes one control message; replaceable in tests.
	sendFn func(method string, params []string) error
	// afterFn schedules a reconnect attempt; replaceable in tests.
	afterFn func(d time.Duration, f func())
}

// NewMultiplexer builds a multiplexer for the given combined-stream endpoint.
func NewMultiplexer(url string, maxReconnect int) *Multiplexer {
	m := &Multiplexer{
		URL:          url,
		MaxReconnect: maxReconnect,
		dialer:       &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		refs:         make(map[string]int),
		klineSubs:    make(map[int]func(Candle)),
		tickerSubs:   make(map[int]func(Ticker)),
	}
	m.sendFn = m.writeControl
	m.afterFn = func(d time.Duration, f func()) { time.AfterFunc(d, f) }
	return m
}

// Connect dials the feed. It is idempotent while a connection is open or a
// dial is in flight. On success the full current stream set is resubscribed,
// so listeners recover after a forced reconnect (with a gap, not a loss of
// the subscription itself).
func (m *Multiplexer) Connect() error {
	m.mu.Lock()
	if m.conn != nil || m.connecting {
		m.mu.Unlock()
		return nil
	}
	m.connecting = true
	m.stopped = false
	m.mu.Unlock()

	conn, _, err := m.dialer.Dial(m.URL, nil)

	m.mu.Lock()
	m.connecting = false
	if err != nil {
		m.mu.Unlock()
		m.scheduleReconnect()
		return err
	}
	m.conn = conn
	m.attempts = 0
	streams := make([]string, 0, len(m.refs))
	for s := range m.refs {
		streams = append(streams, s)
	}
	m.mu.Unlock()

	if len(streams) > 0 {
		if err := m.sendFn("SUBSCRIBE", streams); err != nil {
			log.Printf("feed: resubscribe error: %v", err)
		}
	}

	go m.readLoop(conn)
	return nil
}

// Disconnect closes the connection and disables automatic reconnects until
// Connect is called again.
func (m *Multiplexer) Disconnect() {
	m.mu.Lock()
	m.stopped = true
	conn := m.conn
	m.conn = nil
	m.mu.Unlock()

	if conn != nil {
		m.writeMu.Lock()
		_ = conn.WriteMessage(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
		m.writeMu.Unlock()
		_ = conn.Close()
	}
}

// Connected reports whether the wire connection is currently up. Updates are
// silently dropped while it is false; callers poll this flag.
func (m *Multiplexer) Connected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.conn != nil
}

// Subscribe bumps the reference count for each stream and wires the ones
// that just became needed.
func (m *Multiplexer) Subscribe(streams []string) {
	m.mu.Lock()
	var fresh []string
	for _, s := range streams {
		m.refs[s]++
		if m.refs[s] == 1 {
			fresh = append(fresh, s)
		}
	}
	connected := m.conn != nil
	m.mu.Unlock()

	if connected && len(fresh) > 0 {
		if err := m.sendFn("SUBSCRIBE", fresh); err != nil {
			log.Printf("feed: subscribe error: %v", err)
		}
	}
}

// Unsubscribe drops one reference per stream and unwires streams whose count
// reaches zero. Unsubscribing a stream that was never subscribed is a no-op;
// the count never goes negative.
func (m *Multiplexer) Unsubscribe(streams []string) {
	m.mu.Lock()
	var stale []string
	for _, s := range streams {
		n, ok := m.refs[s]
		if !ok {
			continue
		}
		if n <= 1 {
			delete(m.refs, s)
			stale = append(stale, s)
		} else {
			m.refs[s] = n - 1
		}
	}
	connected := m.conn != nil
	m.mu.Unlock()

	if connected && len(stale) > 0 {
		if err := m.sendFn("UNSUBSCRIBE", stale); err != nil {
			log.Printf("feed: unsubscribe error: %v", err)
		}
	}
}

// Subscribed reports whether a stream is live on the wire (count > 0).
func (m *Multiplexer) Subscribed(stream string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.refs[stream] > 0
}

// OnKline registers a candle listener and returns its remove function.
func (m *Multiplexer) OnKline(cb func(Candle)) func() {
	m.cbMu.Lock()
	id := m.nextCb
	m.nextCb++
	m.klineSubs[id] = cb
	m.cbMu.Unlock()

	return func() {
		m.cbMu.Lock()
		delete(m.klineSubs, id)
		m.cbMu.Unlock()
	}
}

// OnTicker registers a ticker listener and returns its remove function.
func (m *Multiplexer) OnTicker(cb func(Ticker)) func() {
	m.cbMu.Lock()
	id := m.nextCb
	m.nextCb++
	m.tickerSubs[id] = cb
	m.cbMu.Unlock()

	return func() {
		m.cbMu.Lock()
		delete(m.tickerSubs, id)
		m.cbMu.Unlock()
	}
}

func (m *Multiplexer) writeControl(method string, params []string) error {
	m.mu.Lock()
	conn := m.conn
	m.msgID++
	id := m.msgID
	m.mu.Unlock()

	if conn == nil {
		return nil
	}
	msg := struct {
		Method string   `json:"method"`
		Params []string `json:"params"`
		ID     int64    `json:"id"`
	}{Method: method, Params: params, ID: id}

	m.writeMu.Lock()
	defer m.writeMu.Unlock()
	return conn.WriteJSON(msg)
}

func (m *Multiplexer) readLoop(conn *websocket.Conn) {
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			m.mu.Lock()
			current := m.conn == conn
			if current {
				m.conn = nil
			}
			stopped := m.stopped
			m.mu.Unlock()

			if !current || stopped ||
				websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) ||
				strings.Contains(err.Error(), "use of closed network connection") {
				return
			}
			log.Printf("feed: read error: %v", err)
			m.scheduleReconnect()
			return
		}
		m.handleMessage(msg)
	}
}

// scheduleReconnect retries with exponential backoff (2^attempt seconds) up
// to MaxReconnect attempts; after that the connection stays down until
// Connect is called again externally.
func (m *Multiplexer) scheduleReconnect() {
	m.mu.Lock()
	if m.stopped || m.connecting || m.conn != nil {
		m.mu.Unlock()
		return
	}
	if m.attempts >= m.MaxReconnect {
		log.Printf("feed: giving up after %d reconnect attempts", m.attempts)
		m.mu.Unlock()
		return
	}
	m.attempts++
	attempt := m.attempts
	delay := time.Duration(math.Pow(2, float64(attempt))) * time.Second
	m.mu.Unlock()

	log.Printf("feed: reconnecting in %s (attempt %d/%d)", delay, attempt, m.MaxReconnect)
	m.afterFn(delay, func() {
		if err := m.Connect(); err != nil {
			log.Printf("feed: reconnect dial error: %v", err)
		}
	})
}

// handleMessage classifies one inbound frame and fans it out synchronously.
// A panicking callback must not prevent delivery to the remaining listeners.
func (m *Multiplexer) handleMessage(msg []byte) {
	var envelope struct {
		Stream string          `json:"stream"`
		Data   json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(msg, &envelope); err != nil || len(envelope.Data) == 0 {
		return
	}

	var head struct {
		Event string `json:"e"`
	}
	if err := json.Unmarshal(envelope.Data, &head); err != nil {
		return
	}

	switch head.Event {
	case "kline":
		candle, err := parseKline(envelope.Data)
		if err != nil {
			log.Printf("feed: kline parse error: %v", err)
			return
		}
		m.cbMu.RLock()
		cbs := make([]func(Candle), 0, len(m.klineSubs))
		for _, cb := range m.klineSubs {
			cbs = append(cbs, cb)
		}
		m.cbMu.RUnlock()
		for _, cb := range cbs {
			deliverKline(cb, candle)
		}
	case "24hrTicker":
		ticker, err := parseTicker(envelope.Data)
		if err != nil {
			log.Printf("feed: ticker parse error: %v", err)
			return
		}
		m.cbMu.RLock()
		cbs := make([]func(Ticker), 0, len(m.tickerSubs))
		for _, cb := range m.tickerSubs {
			cbs = append(cbs, cb)
		}
		m.cbMu.RUnlock()
		for _, cb := range cbs {
			deliverTicker(cb, ticker)
		}
	}
}

func deliverKline(cb func(Candle), c Candle) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("feed: kline listener panic: %v", r)
		}
	}()
	cb(c)
}

func deliverTicker(cb func(Ticker), t Ticker) {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("feed: ticker listener panic: %v", r)
		}
	}()
	cb(t)
}

func parseKline(data []byte) (Candle, error) {
	var raw struct {
		Kline struct {
			StartTime int64  `json:"t"`
			CloseTime int64  `json:"T"`
			Symbol    string `json:"s"`
			Interval  string `json:"i"`
			Open      any    `json:"o"`
			Close     any    `json:"c"`
			High      any    `json:"h"`
			Low       any    `json:"l"`
			Volume    any    `json:"v"`
			Final     bool   `json:"x"`
		} `json:"k"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Candle{}, err
	}
	return Candle{
		Symbol:    raw.Kline.Symbol,
		Interval:  raw.Kline.Interval,
		OpenTime:  raw.Kline.StartTime,
		CloseTime: raw.Kline.CloseTime,
		Open:      toFloat(raw.Kline.Open),
		High:      toFloat(raw.Kline.High),
		Low:       toFloat(raw.Kline.Low),
		Close:     toFloat(raw.Kline.Close),
		Volume:    toFloat(raw.Kline.Volume),
		IsFinal:   raw.Kline.Final,
	}, nil
}

func parseTicker(data []byte) (Ticker, error) {
	var raw struct {
		Symbol  string `json:"s"`
		Last    any    `json:"c"`
		Change  any    `json:"p"`
		Percent any    `json:"P"`
		High    any    `json:"h"`
		Low     any    `json:"l"`
		Volume  any    `json:"v"`
		Bid     any    `json:"b"`
		Ask     any    `json:"a"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Ticker{}, err
	}
	return Ticker{
		Symbol:  raw.Symbol,
		Price:   toFloat(raw.Last),
		Change:  toFloat(raw.Change),
		Percent: toFloat(raw.Percent),
		High:    toFloat(raw.High),
		Low:     toFloat(raw.Low),
		Volume:  toFloat(raw.Volume),
		Bid:     toFloat(raw.Bid),
		Ask:     toFloat(raw.Ask),
	}, nil
}

// toFloat handles the feed's habit of sending numbers as strings.
func toFloat(v any) float64 {
	switch x := v.(type) {
	case float64:
		return x
	case string:
		f, _ := strconv.ParseFloat(x, 64)
		return f
	default:
		return 0
	}
}
