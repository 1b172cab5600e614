package datasitemgr

import "github.com/openmined/syftbox-client/internal/client/datasite"

type DatasiteStatus string

const (
	DatasiteStatusUnprovisioned DatasiteStatus = "UNPROVISIONED"
	DatasiteStatusProvisioning  DatasiteStatus = "PROVISIONING"
	DatasiteStatusProvisioned   DatasiteStatus = "PROVISIONED"
	DatasiteStatusError         DatasiteStatus = "ERROR"
)

type DatasiteManagerStatus struct {
	Status        DatasiteStatus
	Datasite      *datasite.Datasite
	DatasiteError error
}
