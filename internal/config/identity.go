package config

import "os"

// podIdentityEnvVars is the lookup order for resolving a pod's identity:
// Kubernetes downward-API convention first, falling back to whatever the
// host OS exposes, and finally a hardcoded default for local runs.
var podIdentityEnvVars = []string{"POD_NAME", "HOSTNAME", "COMPUTERNAME", "MACHINE_NAME"}

// PodIdentity resolves this process's identity, stamped as origin_pod_id
// on every event it sends and used as the broadcast consumer group
// suffix.
func PodIdentity() string {
	for _, key := range podIdentityEnvVars {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return "localhost"
}
