package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/salahayoub/hotviz/pkg/metrics"
	"github.com/salahayoub/hotviz/pkg/types"
)

const (
	// defaultSubscriberBufferSize is the buffer of each subscriber channel.
	// Events published to a full subscriber are dropped for that subscriber.
	defaultSubscriberBufferSize = 256

	serviceName      = "hotviz.EventStream"
	subscribeMethod  = "/" + serviceName + "/Subscribe"
	subscribeStreamN = "Subscribe"
)

// eventStreamServer is the handler type registered with gRPC.
type eventStreamServer interface {
	subscribe(req *structpb.Struct, stream grpc.ServerStream) error
}

var eventStreamDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*eventStreamServer)(nil),
	Streams: []grpc.StreamDesc{
		{
			StreamName:    subscribeStreamN,
			Handler:       subscribeHandler,
			ServerStreams: true,
		},
	},
	Metadata: "hotviz/events",
}

func subscribeHandler(srv interface{}, stream grpc.ServerStream) error {
	req := new(structpb.Struct)
	if err := stream.RecvMsg(req); err != nil {
		return err
	}
	return srv.(eventStreamServer).subscribe(req, stream)
}

type subscriber struct {
	session string
	events  chan types.Event
}

// Server publishes events to gRPC subscribers. It is safe for concurrent
// use by multiple goroutines.
type Server struct {
	localAddr string
	backlog   BacklogFunc

	mu     sync.Mutex
	nextID uint64
	subs   map[uint64]*subscriber

	server   *grpc.Server
	listener net.Listener

	shutdown   chan struct{}
	shutdownMu sync.Mutex
}

// NewServer creates a Server listening on listenAddr.
func NewServer(listenAddr string, backlog BacklogFunc) (*Server, error) {
	listener, err := net.Listen("tcp", listenAddr)
	if err != nil {
		return nil, err
	}
	return NewServerWithListener(listener, backlog), nil
}

// NewServerWithListener creates a Server serving on an existing listener.
// backlog may be nil.
func NewServerWithListener(listener net.Listener, backlog BacklogFunc) *Server {
	s := &Server{
		localAddr: listener.Addr().String(),
		backlog:   backlog,
		subs:      make(map[uint64]*subscriber),
		shutdown:  make(chan struct{}),
		listener:  listener,
	}

	s.server = grpc.NewServer()
	s.server.RegisterService(&eventStreamDesc, s)

	go func() {
		_ = s.server.Serve(listener)
	}()
	return s
}

// LocalAddr returns the address on which this server listens.
func (s *Server) LocalAddr() string {
	return s.localAddr
}

// Subscribers returns the number of connected subscribers.
func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

// Publish delivers ev to matching subscribers without blocking.
func (s *Server) Publish(session string, ev types.Event) error {
	select {
	case <-s.shutdown:
		return ErrTransportClosed
	default:
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sub := range s.subs {
		if sub.session != "" && sub.session != session {
			continue
		}
		select {
		case sub.events <- ev:
		default:
			slog.Warn("subscriber buffer full, dropping event", "subscriber", id, "kind", ev.Kind)
		}
	}
	return nil
}

func (s *Server) register(session string) (uint64, *subscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	sub := &subscriber{session: session, events: make(chan types.Event, defaultSubscriberBufferSize)}
	s.subs[s.nextID] = sub
	metrics.StreamSubscribers.Set(float64(len(s.subs)))
	return s.nextID, sub
}

func (s *Server) unregister(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.subs, id)
	metrics.StreamSubscribers.Set(float64(len(s.subs)))
}

func (s *Server) subscribe(raw *structpb.Struct, stream grpc.ServerStream) error {
	var req SubscribeRequest
	if err := fromStruct(raw, &req); err != nil {
		return err
	}

	// Register before reading the backlog so nothing published in between
	// is lost. Recorded events published in that window are also in the
	// backlog; sent tracks the highest sequence already delivered. Sequences
	// are per session, so only session subscribers skip by sequence.
	id, sub := s.register(req.Session)
	defer s.unregister(id)
	slog.Info("subscriber connected", "subscriber", id, "session", req.Session)

	sent := req.After
	if s.backlog != nil && req.Session != "" {
		events, err := s.backlog(req.Session, req.After)
		if err != nil {
			return fmt.Errorf("failed to load backlog: %w", err)
		}
		for _, ev := range events {
			if ev.Seq != 0 && ev.Seq <= sent {
				continue
			}
			if err := send(stream, ev); err != nil {
				return err
			}
			if ev.Seq > sent {
				sent = ev.Seq
			}
		}
	}

	ctx := stream.Context()
	for {
		select {
		case ev := <-sub.events:
			if req.Session != "" {
				if ev.Seq != 0 && ev.Seq <= sent {
					continue
				}
				if ev.Seq > sent {
					sent = ev.Seq
				}
			}
			if err := send(stream, ev); err != nil {
				return err
			}
		case <-s.shutdown:
			return nil
		case <-ctx.Done():
			slog.Info("subscriber disconnected", "subscriber", id)
			return nil
		}
	}
}

func send(stream grpc.ServerStream, ev types.Event) error {
	msg, err := EncodeEvent(ev)
	if err != nil {
		return err
	}
	return stream.SendMsg(msg)
}

// Close shuts down the server and ends all subscriptions. It is safe to call
// multiple times.
func (s *Server) Close() error {
	s.shutdownMu.Lock()
	defer s.shutdownMu.Unlock()

	select {
	case <-s.shutdown:
		return nil
	default:
	}
	close(s.shutdown)

	if s.server != nil {
		s.server.GracefulStop()
	}
	return nil
}

// Compile-time check that Server implements Publisher.
var _ Publisher = (*Server)(nil)

// Client subscribes to a relay.
type Client struct {
	conn *grpc.ClientConn
}

// Dial creates a client for the relay at target. Extra options are appended
// after insecure transport credentials.
func Dial(target string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	return &Client{conn: conn}, nil
}

// Close releases the connection.
func (c *Client) Close() error {
	return c.conn.Close()
}

// Subscription is an open event stream.
type Subscription struct {
	events chan types.Event
	done   chan struct{}
	err    error
}

// Events returns the event channel. It is closed when the stream ends.
func (s *Subscription) Events() <-chan types.Event {
	return s.events
}

// Err returns the error that ended the stream. It is nil for a clean end
// and only valid after Events is closed.
func (s *Subscription) Err() error {
	<-s.done
	return s.err
}

// Subscribe opens a stream for req. Events are delivered until ctx is
// cancelled or the server ends the stream.
func (c *Client) Subscribe(ctx context.Context, req SubscribeRequest) (*Subscription, error) {
	stream, err := c.conn.NewStream(ctx, &eventStreamDesc.Streams[0], subscribeMethod)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConnectionFailed, err)
	}
	msg, err := toStruct(req)
	if err != nil {
		return nil, err
	}
	if err := stream.SendMsg(msg); err != nil {
		return nil, fmt.Errorf("failed to send subscribe request: %w", err)
	}
	if err := stream.CloseSend(); err != nil {
		return nil, fmt.Errorf("failed to close send: %w", err)
	}

	sub := &Subscription{
		events: make(chan types.Event, defaultSubscriberBufferSize),
		done:   make(chan struct{}),
	}
	go func() {
		defer close(sub.done)
		defer close(sub.events)
		for {
			raw := new(structpb.Struct)
			if err := stream.RecvMsg(raw); err != nil {
				if !errors.Is(err, io.EOF) && ctx.Err() == nil {
					sub.err = err
				}
				return
			}
			ev, err := DecodeEvent(raw)
			if err != nil {
				slog.Warn("dropping malformed event", "error", err)
				continue
			}
			metrics.EventsReceived.WithLabelValues(string(ev.Kind)).Inc()
			select {
			case sub.events <- ev:
			case <-ctx.Done():
				return
			}
		}
	}()
	return sub, nil
}
