package status

//ImportStatus status of an import job
type ImportStatus string

const (
	//PENDING import job created but not started
	PENDING ImportStatus = "PENDING"
	//RUNNING import job is pulling blocks and dispatching batches
	RUNNING ImportStatus = "RUNNING"
	//DRAINING import job stopped dispatching and waits for in-flight batches
	DRAINING ImportStatus = "DRAINING"
	//COMPLETED import job finished with all records committed
	COMPLETED ImportStatus = "COMPLETED"
	//ABORTED import job terminated on a fatal error
	ABORTED ImportStatus = "ABORTED"
)

var statuses = map[ImportStatus]int{
	PENDING:   0,
	RUNNING:   1,
	DRAINING:  2,
	COMPLETED: 3,
	ABORTED:   4,
}

//And combine two statuses, the more severe one wins
func (s ImportStatus) And(other ImportStatus) ImportStatus {
	i1, ok1 := statuses[s]
	i2, ok2 := statuses[other]
	if ok1 && ok2 {
		if i1 < i2 {
			return other
		}
		return s
	} else if ok1 {
		return other
	}
	return s
}

//Terminal report whether the status is a terminal one
func (s ImportStatus) Terminal() bool {
	return s == COMPLETED || s == ABORTED
}
