package worker

import (
	"github.com/nailsalon/admin-gate/internal/service"
)

// StartNotificationWorker registers notification and access log handlers.
func StartNotificationWorker(notificationService *service.NotificationService, accessLogs *service.AccessLogService) {
	if notificationService != nil {
		notificationService.RegisterHandlers()
	}
	if accessLogs != nil {
		accessLogs.RegisterHandlers()
	}
}
