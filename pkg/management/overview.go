package management

import (
	"strconv"
)

// GetOverview totals the session's objects and message counts.
func (s *Service) GetOverview() *OverviewDTO {
	queues := s.ListQueues()
	totals := OverviewObjectTotals{
		Exchanges: len(s.session.ExchangeNames()),
		Queues:    len(queues),
		Consumers: len(s.ListConsumers()),
		Bindings:  len(s.ListBindings()),
	}
	for _, ch := range s.session.Channels() {
		if ch.IsOpen() {
			totals.Channels++
		}
	}
	return &OverviewDTO{
		Status:       string(s.session.Status()),
		ObjectTotals: totals,
		MessageStats: messageStats(queues),
	}
}

func messageStats(queues []QueueDTO) OverviewMessageStats {
	stats := OverviewMessageStats{QueueStats: make([]QueueMessageBreakdown, 0, len(queues))}
	for _, q := range queues {
		stats.MessagesReady += q.Messages
		stats.MessagesUnacked += q.MessagesUnacked
		stats.MessagesTotal += q.MessagesTotal
		stats.QueueStats = append(stats.QueueStats, QueueMessageBreakdown{
			QueueName:       q.Name,
			MessagesReady:   q.Messages,
			MessagesUnacked: q.MessagesUnacked,
		})
	}
	return stats
}

func channelName(number uint16) string {
	return strconv.FormatUint(uint64(number), 10)
}
