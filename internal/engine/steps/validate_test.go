/*
Copyright 2025.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package steps

import (
	"context"
	"testing"

	weblogicv1 "github.com/wlsoperator/domain-engine/api/v1"
	"github.com/wlsoperator/domain-engine/internal/engine"
	weblogicerrors "github.com/wlsoperator/domain-engine/internal/errors"
)

func TestValidateDomainTopology(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(d *weblogicv1.Domain)
		wantErr bool
	}{
		{"valid domain passes", func(*weblogicv1.Domain) {}, false},
		{"missing image fails", func(d *weblogicv1.Domain) { d.Spec.Image = "" }, true},
		{"missing credentials secret fails", func(d *weblogicv1.Domain) { d.Spec.WebLogicCredentialsSecret = "" }, true},
		{"duplicate cluster fails", func(d *weblogicv1.Domain) {
			d.Spec.Clusters = append(d.Spec.Clusters, d.Spec.Clusters[0])
		}, true},
		{"dynamic server number beyond max fails", func(d *weblogicv1.Domain) {
			d.Spec.Clusters[0].MaxDynamicClusterSize = 5
			d.Spec.ManagedServers = []weblogicv1.ManagedServer{{ServerName: "cluster-1-server7"}}
		}, true},
		{"dynamic server number within max passes", func(d *weblogicv1.Domain) {
			d.Spec.Clusters[0].MaxDynamicClusterSize = 5
			d.Spec.ManagedServers = []weblogicv1.ManagedServer{{ServerName: "cluster-1-server3"}}
		}, false},
		{"server outside the cluster naming scheme is not range-checked", func(d *weblogicv1.Domain) {
			d.Spec.Clusters[0].MaxDynamicClusterSize = 5
			d.Spec.ManagedServers = []weblogicv1.ManagedServer{{ServerName: "standalone-server"}}
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newClusteredDomain("uid1", 2, 5)
			tt.mutate(d)
			info := engine.NewDomainPresenceInfo("ns1", "uid1", d)
			packet := engine.NewPacket(info)

			_, err := (ValidateDomainTopology{}).Apply(context.Background(), packet)
			if tt.wantErr {
				if err == nil {
					t.Fatal("Apply() error = nil, want validation error")
				}
				if !weblogicerrors.IsValidation(err) {
					t.Errorf("IsValidation(%v) = false, want true", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Apply() error = %v", err)
			}
		})
	}
}
