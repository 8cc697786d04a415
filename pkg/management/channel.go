package management

import (
	"github.com/andrelcunha/ottermock/pkg/amqp"
	"github.com/andrelcunha/ottermock/pkg/amqp/errors"
	"github.com/andrelcunha/ottermock/pkg/broker"
)

// ListChannels returns every channel the session opened, closed ones
// included.
func (s *Service) ListChannels() []ChannelDTO {
	channels := s.session.Channels()
	dtos := make([]ChannelDTO, 0, len(channels))
	for _, ch := range channels {
		dtos = append(dtos, channelToDTO(ch))
	}
	return dtos
}

func (s *Service) GetChannel(number uint16) (*ChannelDTO, error) {
	for _, ch := range s.session.Channels() {
		if ch.ID() == number {
			dto := channelToDTO(ch)
			return &dto, nil
		}
	}
	return nil, errors.NewNotFoundError(errors.KindChannel, channelName(number))
}

func channelToDTO(ch *broker.Channel) ChannelDTO {
	return ChannelDTO{
		Number:          ch.ID(),
		State:           string(ch.Status()),
		Consumers:       len(ch.Consumers()),
		LastDeliveryTag: ch.LastDeliveryTag(),
		UnackedCount:    len(ch.Tags(amqp.PENDING)),
		AckedCount:      len(ch.Tags(amqp.ACKED)),
		NackedCount:     len(ch.Tags(amqp.NACKED)),
		RejectedCount:   len(ch.Tags(amqp.REJECTED)),
	}
}
