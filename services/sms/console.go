package smssvc

import (
	"log"
	"sync"

	"github.com/trezcool/quizforge/core"
)

type consoleService struct {
	std *log.Logger
}

var _ core.SMSService = (*consoleService)(nil)

func NewConsoleService(std *log.Logger) core.SMSService {
	return &consoleService{std: std}
}

func (svc consoleService) SendMessages(messages ...*core.SMSMessage) {
	for _, msg := range messages {
		if msg.To == "" || msg.Body == "" {
			continue
		}
		svc.std.Printf("SMS to %s: %s\n", msg.To, msg.Body)
	}
}

// ConsoleServiceMock records the messages it is given.
type ConsoleServiceMock struct {
	mu   sync.Mutex
	sent []core.SMSMessage
}

var _ core.SMSService = (*ConsoleServiceMock)(nil)

func NewConsoleServiceMock() *ConsoleServiceMock {
	return new(ConsoleServiceMock)
}

func (svc *ConsoleServiceMock) SendMessages(messages ...*core.SMSMessage) {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	for _, msg := range messages {
		if msg.To == "" || msg.Body == "" {
			continue
		}
		svc.sent = append(svc.sent, *msg)
	}
}

func (svc *ConsoleServiceMock) SentMessages() []core.SMSMessage {
	svc.mu.Lock()
	defer svc.mu.Unlock()
	return append([]core.SMSMessage(nil), svc.sent...)
}
