package templates

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/appforge/cli/internal/appconfig"
	oerrors "github.com/appforge/cli/internal/errors"
)

var testOwner = appconfig.Owner{Email: "owner@example.com", Name: "O'Brien"}

func newTestComposer(t *testing.T) *Composer {
	t.Helper()
	c, err := NewComposer()
	require.NoError(t, err)
	return c
}

func normalize(t *testing.T, doc map[string]any) *appconfig.AppConfig {
	t.Helper()
	n, err := appconfig.NewNormalizer(appconfig.PolicyMerge)
	require.NoError(t, err)
	cfg, err := n.Normalize(doc)
	require.NoError(t, err)
	return cfg
}

func shopConfig(t *testing.T) *appconfig.AppConfig {
	return normalize(t, map[string]any{
		"appName":  "My Shop",
		"features": []any{"Payments"},
		"entities": []any{
			map[string]any{
				"name": "Product",
				"fields": []any{
					map[string]any{"name": "price", "type": "Integer", "optional": false},
				},
			},
		},
	})
}

func paths(files []VirtualFile) []string {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = f.Path
	}
	return out
}

func fileContent(t *testing.T, files []VirtualFile, path string) string {
	t.Helper()
	for _, f := range files {
		if f.Path == path {
			return string(f.Content)
		}
	}
	t.Fatalf("file %s not generated", path)
	return ""
}

func TestCompose_Shop(t *testing.T) {
	c := newTestComposer(t)

	files, err := c.Compose(shopConfig(t), testOwner)
	require.NoError(t, err)

	assert.Equal(t, []string{
		"db/schema/User.sql",
		"src/api/User.ts",
		"src/ui/User.tsx",
		"db/schema/Product.sql",
		"src/api/Product.ts",
		"src/ui/Product.tsx",
		"src/features/payments/checkout.ts",
		"src/features/payments/webhook.ts",
		"db/seed.sql",
		"src/db.ts",
		"src/format.ts",
		"src/main.ts",
		"appforge.json",
		"package.json",
		"README.md",
	}, paths(files))

	schema := fileContent(t, files, "db/schema/Product.sql")
	assert.Contains(t, schema, `CREATE TABLE IF NOT EXISTS "Product"`)
	assert.Contains(t, schema, `"id" INTEGER PRIMARY KEY`)
	assert.Contains(t, schema, `"price" INTEGER NOT NULL`)

	userSchema := fileContent(t, files, "db/schema/User.sql")
	assert.Contains(t, userSchema, `"email" TEXT NOT NULL`)
	assert.Contains(t, userSchema, `"name" TEXT`+"\n")
	assert.NotContains(t, userSchema, `"name" TEXT NOT NULL`)
	assert.Contains(t, userSchema, `"user_email_key"`)

	api := fileContent(t, files, "src/api/Product.ts")
	assert.Contains(t, api, "export interface Product {")
	assert.Contains(t, api, "  price: number;")
	for _, op := range []string{"createProduct", "listProducts", "getProduct", "updateProduct", "deleteProduct"} {
		assert.Contains(t, api, "export async function "+op)
	}
	assert.Contains(t, api, `basePath: "/api/products"`)

	ui := fileContent(t, files, "src/ui/Product.tsx")
	assert.Contains(t, ui, `{ name: "price", label: "Price", input: "number", display: "number", required: true }`)
	assert.Contains(t, ui, "export function ProductList")
	assert.Contains(t, ui, "export function ProductDetail")

	seed := fileContent(t, files, "db/seed.sql")
	assert.Contains(t, seed, `INSERT INTO "User" ("email", "name")`)
	assert.Contains(t, seed, `VALUES ('owner@example.com', 'O''Brien');`)

	main := fileContent(t, files, "src/main.ts")
	assert.Contains(t, main, `import * as api_User from "./api/User";`)
	assert.Contains(t, main, `import * as paymentsWebhook from "./features/payments/webhook";`)
	assert.Less(t, strings.Index(main, "api_User"), strings.Index(main, "api_Product"))
	assert.Less(t, strings.Index(main, "ui_Product"), strings.Index(main, "paymentsCheckout"))

	var manifest Manifest
	require.NoError(t, json.Unmarshal([]byte(fileContent(t, files, ManifestPath)), &manifest))
	assert.Equal(t, "My Shop", manifest.AppName)
	assert.Equal(t, []string{"User", "Product"}, manifest.Entities)
	assert.Equal(t, []string{"Payments"}, manifest.Features)
	assert.Equal(t, []string{
		"src/api/User.ts", "src/ui/User.tsx",
		"src/api/Product.ts", "src/ui/Product.tsx",
		"src/features/payments/checkout.ts", "src/features/payments/webhook.ts",
	}, manifest.Modules)

	assert.Contains(t, fileContent(t, files, "package.json"), `"name": "my-shop"`)
}

func TestCompose_Deterministic(t *testing.T) {
	c := newTestComposer(t)
	cfg := shopConfig(t)
	cfg.Features = append(cfg.Features, appconfig.FeatureAuthentication, appconfig.FeatureAdminPanel)

	first, err := c.Compose(cfg, testOwner)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		again, err := c.Compose(cfg, testOwner)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}

	// A fresh composer must agree as well.
	other, err := newTestComposer(t).Compose(cfg, testOwner)
	require.NoError(t, err)
	assert.Equal(t, first, other)
}

func TestCompose_IdentityEntityFirst(t *testing.T) {
	c := newTestComposer(t)

	cfg := normalize(t, map[string]any{
		"appName": "Blog",
		"entities": []any{
			map[string]any{"name": "Post"},
			map[string]any{"name": "User", "fields": []any{
				map[string]any{"name": "bio", "type": "Text", "optional": true},
			}},
		},
	})

	files, err := c.Compose(cfg, testOwner)
	require.NoError(t, err)
	assert.Equal(t, "db/schema/User.sql", files[0].Path)
	assert.Contains(t, string(files[0].Content), `"bio" TEXT`)
	assert.Equal(t, "db/schema/Post.sql", files[3].Path)
}

func TestCompose_UnknownFeatureIgnored(t *testing.T) {
	c := newTestComposer(t)

	cfg := shopConfig(t)
	withUnknown := *cfg
	withUnknown.Features = []appconfig.Feature{"Teleportation", appconfig.FeaturePayments, "Time Travel"}

	want, err := c.Compose(cfg, testOwner)
	require.NoError(t, err)
	got, err := c.Compose(&withUnknown, testOwner)
	require.NoError(t, err)

	assert.Equal(t, want, got)
}

func TestCompose_PathsUniqueAcrossCombinations(t *testing.T) {
	c := newTestComposer(t)
	known := KnownFeatures()

	entitySets := [][]any{
		{map[string]any{"name": "Product"}},
		{map[string]any{"name": "Post"}, map[string]any{"name": "Comment"}, map[string]any{"name": "Tag"}},
		{map[string]any{"name": "db"}, map[string]any{"name": "format"}, map[string]any{"name": "main"}},
		{map[string]any{"name": "Task"}, map[string]any{"name": "task"}},
	}

	for mask := 0; mask < 1<<len(known); mask++ {
		var features []any
		for i, f := range known {
			if mask&(1<<i) != 0 {
				features = append(features, string(f))
			}
		}

		for i, entities := range entitySets {
			t.Run(fmt.Sprintf("features=%d/entities=%d", mask, i), func(t *testing.T) {
				cfg := normalize(t, map[string]any{
					"appName":  "Combo",
					"features": features,
					"entities": entities,
				})

				files, err := c.Compose(cfg, testOwner)
				require.NoError(t, err)

				seen := make(map[string]bool, len(files))
				for _, f := range files {
					require.NoError(t, ValidatePath(f.Path))
					assert.False(t, seen[f.Path], "duplicate path %s", f.Path)
					seen[f.Path] = true
				}

				wantCount := 3*len(cfg.Entities) + 7
				for _, f := range cfg.Features {
					frags, _ := Fragments(f)
					wantCount += len(frags)
				}
				assert.Len(t, files, wantCount)
			})
		}
	}
}

func TestCompose_AllFeatureFragments(t *testing.T) {
	c := newTestComposer(t)

	cfg := shopConfig(t)
	cfg.Features = KnownFeatures()

	files, err := c.Compose(cfg, appconfig.Owner{Email: "a@example.com"})
	require.NoError(t, err)

	got := paths(files)
	for _, f := range KnownFeatures() {
		frags, ok := Fragments(f)
		require.True(t, ok)
		for _, frag := range frags {
			assert.Contains(t, got, frag.Path)
		}
	}

	assert.Contains(t, fileContent(t, files, "db/seed.sql"), "'a@example.com', NULL")
	assert.Contains(t, fileContent(t, files, "src/features/admin/dashboard.tsx"), `import { ProductList } from "../../ui/Product";`)
	assert.Contains(t, fileContent(t, files, "src/features/auth/routes.ts"), "listUsers")
}

func TestCompose_UnnormalizedConfig(t *testing.T) {
	c := newTestComposer(t)

	_, err := c.Compose(&appconfig.AppConfig{
		AppName:  "Raw",
		Entities: []appconfig.Entity{{Name: "Product"}},
	}, testOwner)
	assert.ErrorIs(t, err, oerrors.ErrComposition)
}

func TestCompose_UnmappedFieldType(t *testing.T) {
	c := newTestComposer(t)

	cfg := shopConfig(t)
	cfg.Entities[1].Fields = append(cfg.Entities[1].Fields, appconfig.Field{Name: "cost", Type: "Currency"})

	_, err := c.Compose(cfg, testOwner)
	require.Error(t, err)
	assert.ErrorIs(t, err, oerrors.ErrComposition)
}
