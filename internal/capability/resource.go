package capability

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/permafrost-io/groupctl/internal/logging"
)

// resourceByACL maps known CDF acl wire names to their canonical resource
// token. Unknown acl types fall back to deriveResource, so this table is a
// fast path plus a place to pin the vocabulary for supported types.
var resourceByACL = map[string]string{
	"analyticsAcl":             "analytics",
	"annotationsAcl":           "annotations",
	"assetsAcl":                "assets",
	"dataModelInstancesAcl":    "data_model_instances",
	"dataModelsAcl":            "data_models",
	"dataSetsAcl":              "data_sets",
	"digitalTwinAcl":           "digital_twin",
	"documentsAcl":             "documents",
	"entitymatchingAcl":        "entitymatching",
	"eventsAcl":                "events",
	"extractionConfigsAcl":     "extraction_configs",
	"extractionPipelinesAcl":   "extraction_pipelines",
	"extractionRunsAcl":        "extraction_runs",
	"filesAcl":                 "files",
	"functionsAcl":             "functions",
	"geospatialAcl":            "geospatial",
	"geospatialCrsAcl":         "geospatial_crs",
	"groupsAcl":                "groups",
	"hostedExtractorsAcl":      "hosted_extractors",
	"labelsAcl":                "labels",
	"monitoringTasksAcl":       "monitoring_tasks",
	"notificationsAcl":         "notifications",
	"projectsAcl":              "projects",
	"rawAcl":                   "raw",
	"relationshipsAcl":         "relationships",
	"roboticsAcl":              "robotics",
	"scheduledCalculationsAcl": "scheduled_calculations",
	"securityCategoriesAcl":    "security_categories",
	"seismicAcl":               "seismic",
	"sequencesAcl":             "sequences",
	"sessionsAcl":              "sessions",
	"templateGroupsAcl":        "template_groups",
	"templateInstancesAcl":     "template_instances",
	"threedAcl":                "threed",
	"timeSeriesAcl":            "time_series",
	"transformationsAcl":       "transformations",
	"typesAcl":                 "types",
	"userProfilesAcl":          "user_profiles",
	"wellsAcl":                 "wells",
	"workflowOrchestrationAcl": "workflow_orchestration",
}

func init() {
	// Every table entry must agree with the mechanical derivation; a
	// mismatch would make canonical keys depend on which path produced them.
	for acl, want := range resourceByACL {
		if got := deriveResource(acl); got != want {
			panic(fmt.Sprintf("capability: resource table entry %q = %q, derivation yields %q", acl, want, got))
		}
	}
}

// resourceName returns the canonical resource token for an acl wire name.
// Unknown names go through the mechanical derivation and are logged, since
// they usually mean a new acl type the table has not caught up with.
func resourceName(acl string) string {
	if r, ok := resourceByACL[acl]; ok {
		return r
	}
	r := deriveResource(acl)
	logging.Op().Debug("unknown acl type, derived resource name", "acl", acl, "resource", r)
	return r
}

// deriveResource strips a trailing "Acl" and snake-cases what remains,
// e.g. "timeSeriesAcl" -> "time_series".
func deriveResource(acl string) string {
	return snakeCase(strings.TrimSuffix(acl, "Acl"))
}

// snakeCase inserts an underscore before each interior uppercase letter and
// lowercases the result.
func snakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if i > 0 && unicode.IsUpper(r) {
			b.WriteByte('_')
		}
		b.WriteRune(unicode.ToLower(r))
	}
	return b.String()
}
