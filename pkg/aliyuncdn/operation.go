package aliyuncdn

// Operation is the closed set of actions the node supports.
type Operation string

const (
	// OperationRefreshObjectCaches refreshes (purges) cached objects by path.
	OperationRefreshObjectCaches Operation = "refreshObjectCaches"
)

// Operations lists every supported operation in display order.
func Operations() []Operation {
	return []Operation{
		OperationRefreshObjectCaches,
	}
}

// ParseOperation maps a parameter value to an Operation.
func ParseOperation(value string) (Operation, bool) {
	op := Operation(value)
	return op, op.Valid()
}

// Valid reports whether op is a supported operation.
func (op Operation) Valid() bool {
	switch op {
	case OperationRefreshObjectCaches:
		return true
	}
	return false
}

// String returns the parameter value of the operation.
func (op Operation) String() string {
	return string(op)
}
