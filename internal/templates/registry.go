package templates

import "github.com/appforge/cli/internal/appconfig"

// Fragment is one feature-scoped generated module.
type Fragment struct {
	// Template is the template name within the embedded filesystem.
	Template string

	// Path is the generated file path.
	Path string

	// Ident is the import alias used by the entry point.
	Ident string
}

// featureOrder fixes the order KnownFeatures reports.
var featureOrder = []appconfig.Feature{
	appconfig.FeatureAuthentication,
	appconfig.FeaturePayments,
	appconfig.FeatureFileStorage,
	appconfig.FeatureAdminPanel,
	appconfig.FeatureAIChat,
}

// featureFragments is the static feature-to-fragment table.
var featureFragments = map[appconfig.Feature][]Fragment{
	appconfig.FeatureAuthentication: {
		{Template: "files/features/auth/middleware.ts.tmpl", Path: "src/features/auth/middleware.ts", Ident: "authMiddleware"},
		{Template: "files/features/auth/routes.ts.tmpl", Path: "src/features/auth/routes.ts", Ident: "authRoutes"},
	},
	appconfig.FeaturePayments: {
		{Template: "files/features/payments/checkout.ts.tmpl", Path: "src/features/payments/checkout.ts", Ident: "paymentsCheckout"},
		{Template: "files/features/payments/webhook.ts.tmpl", Path: "src/features/payments/webhook.ts", Ident: "paymentsWebhook"},
	},
	appconfig.FeatureFileStorage: {
		{Template: "files/features/storage/uploads.ts.tmpl", Path: "src/features/storage/uploads.ts", Ident: "storageUploads"},
	},
	appconfig.FeatureAdminPanel: {
		{Template: "files/features/admin/dashboard.tsx.tmpl", Path: "src/features/admin/dashboard.tsx", Ident: "adminDashboard"},
	},
	appconfig.FeatureAIChat: {
		{Template: "files/features/chat/assistant.ts.tmpl", Path: "src/features/chat/assistant.ts", Ident: "chatAssistant"},
	},
}

// Fragments returns the fragments generated for f. The second result is
// false for features without a table entry.
func Fragments(f appconfig.Feature) ([]Fragment, bool) {
	frags, ok := featureFragments[f]
	return frags, ok
}

// KnownFeatures returns every feature with generated modules.
func KnownFeatures() []appconfig.Feature {
	return append([]appconfig.Feature(nil), featureOrder...)
}
