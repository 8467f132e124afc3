package classify

import "testing"

func TestClassify(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		content    string
		wantType   SourceType
		wantConf   float64
		wantHint   string
	}{
		{
			name:     "terraform file",
			path:     "infra/main.tf",
			wantType: Infrastructure,
			wantConf: 1.0,
			wantHint: "terraform",
		},
		{
			name:     "helm chart metadata",
			path:     "charts/app/Chart.yaml",
			wantType: Infrastructure,
			wantConf: 1.0,
			wantHint: "helm",
		},
		{
			name:     "sql dump",
			path:     "db/backup.dump",
			wantType: SQL,
			wantConf: 1.0,
		},
		{
			name:     "django source",
			path:     "app/views.py",
			content:  "from django.http import HttpResponse\n",
			wantType: Python,
			wantConf: 1.0,
			wantHint: "django",
		},
		{
			name:     "shell script",
			path:     "scripts/migrate.sh",
			wantType: Shell,
			wantConf: 1.0,
		},
		{
			name:     "k8s manifest disguised as plain yaml",
			path:     "deploy/deployment.yaml",
			content:  "apiVersion: apps/v1\nkind: Deployment\n",
			wantType: Infrastructure,
			wantConf: 0.8,
			wantHint: "kubernetes",
		},
		{
			name:     "plain configuration yaml",
			path:     "config/app.yaml",
			content:  "log_level: debug\n",
			wantType: Configuration,
			wantConf: 1.0,
		},
		{
			name:     "second document in a multi-doc manifest is the k8s one",
			path:     "deploy/bundle.yaml",
			content:  "configMapName: app-config\n---\napiVersion: v1\nkind: Service\n",
			wantType: Infrastructure,
			wantConf: 0.8,
			wantHint: "kubernetes",
		},
		{
			name:     "documentation",
			path:     "README.md",
			wantType: Documentation,
			wantConf: 1.0,
		},
		{
			name:     "unrecognized extension",
			path:     "data/blob.xyz",
			wantType: Unknown,
			wantConf: 0.0,
		},
	}

	c := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := c.Classify(tt.path, []byte(tt.content))
			if got.SourceType != tt.wantType {
				t.Errorf("SourceType = %s, want %s", got.SourceType, tt.wantType)
			}
			if got.Confidence != tt.wantConf {
				t.Errorf("Confidence = %v, want %v", got.Confidence, tt.wantConf)
			}
			if tt.wantHint != "" {
				found := false
				for _, h := range got.FrameworkHints {
					if h == tt.wantHint {
						found = true
					}
				}
				if !found {
					t.Errorf("FrameworkHints = %v, want to contain %q", got.FrameworkHints, tt.wantHint)
				}
			}
		})
	}
}
