package smssvc

import (
	"fmt"

	"github.com/twilio/twilio-go"
	twilioApi "github.com/twilio/twilio-go/rest/api/v2010"

	"github.com/trezcool/quizforge/core"
)

type twilioService struct {
	client *twilio.RestClient
	from   string
	logger core.Logger
}

var _ core.SMSService = (*twilioService)(nil)

// NewTwilioService returns nil when Twilio is not configured.
func NewTwilioService(logger core.Logger, conf *core.Config) core.SMSService {
	if conf.Twilio.AccountSID == "" || conf.Twilio.AuthToken == "" || conf.Twilio.From == "" {
		return nil
	}
	return &twilioService{
		client: twilio.NewRestClientWithParams(twilio.ClientParams{
			Username: conf.Twilio.AccountSID,
			Password: conf.Twilio.AuthToken,
		}),
		from:   conf.Twilio.From,
		logger: logger,
	}
}

func (svc twilioService) SendMessages(messages ...*core.SMSMessage) {
	for _, msg := range messages {
		if msg.To == "" || msg.Body == "" {
			continue
		}
		go svc.send(*msg)
	}
}

func (svc twilioService) send(msg core.SMSMessage) {
	params := &twilioApi.CreateMessageParams{}
	params.SetTo(msg.To)
	params.SetFrom(svc.from)
	params.SetBody(msg.Body)

	if _, err := svc.client.Api.CreateMessage(params); err != nil {
		svc.logger.Error(fmt.Sprintf("smssvc: sending sms to %s: %v", msg.To, err), err)
	}
}
