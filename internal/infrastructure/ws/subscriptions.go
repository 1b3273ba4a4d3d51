package ws

// subscriptions indexes clients by the user they follow. It is owned by the
// hub's Run goroutine and needs no locking.
type subscriptions struct {
	byUser map[int64]map[string]*Client
	total  int
}

func newSubscriptions() *subscriptions {
	return &subscriptions{
		byUser: make(map[int64]map[string]*Client),
	}
}

func (s *subscriptions) add(cl *Client) {
	clients, ok := s.byUser[cl.UserID]
	if !ok {
		clients = make(map[string]*Client)
		s.byUser[cl.UserID] = clients
	}

	if _, exists := clients[cl.ID]; !exists {
		clients[cl.ID] = cl
		s.total++
	}
}

// remove drops cl and closes its send channel. It reports whether cl was
// subscribed.
func (s *subscriptions) remove(cl *Client) bool {
	clients, ok := s.byUser[cl.UserID]
	if !ok {
		return false
	}
	if _, ok := clients[cl.ID]; !ok {
		return false
	}

	delete(clients, cl.ID)
	close(cl.send)
	s.total--

	if len(clients) == 0 {
		delete(s.byUser, cl.UserID)
	}
	return true
}

// deliver queues msg for the user's subscribers and every wildcard
// subscriber. Slow clients miss the message. It returns how many clients were
// skipped.
func (s *subscriptions) deliver(msg *Message) int {
	dropped := 0
	send := func(clients map[string]*Client) {
		for _, cl := range clients {
			select {
			case cl.send <- msg:
			default:
				dropped++
			}
		}
	}

	send(s.byUser[msg.UserID])
	if msg.UserID != AllUsers {
		send(s.byUser[AllUsers])
	}
	return dropped
}

func (s *subscriptions) closeAll() {
	for _, clients := range s.byUser {
		for _, cl := range clients {
			close(cl.send)
		}
	}
	s.byUser = make(map[int64]map[string]*Client)
	s.total = 0
}
