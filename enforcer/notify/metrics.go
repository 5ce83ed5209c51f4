package notify

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var notificationsSentCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "marshal_notifications_sent",
	Help: "Number of notification messages handed to the mail sender",
}, []string{"path", "channel"})

var notificationsSkippedCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "marshal_notifications_skipped",
	Help: "Number of notifications not sent because there was nobody to send them to",
}, []string{"path"})

var notificationErrorCount = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "marshal_notification_errors",
	Help: "Number of notification messages which failed delivery",
}, []string{"path"})
