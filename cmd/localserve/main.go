// Command localserve runs one of the cloud functions locally through the
// functions framework. Select the function with FUNCTION_TARGET
// (WhatsAppWebhook, ProcessMessage, DashboardAPI, BillingWebhook).
package main

import (
	"log"
	"os"

	"github.com/GoogleCloudPlatform/functions-framework-go/funcframework"

	_ "github.com/formcoach/server/functions/api-dashboard"
	_ "github.com/formcoach/server/functions/billing-webhook"
	_ "github.com/formcoach/server/functions/message-processor"
	_ "github.com/formcoach/server/functions/whatsapp-webhook"
)

func main() {
	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	if err := funcframework.Start(port); err != nil {
		log.Fatalf("funcframework: %v", err)
	}
}
