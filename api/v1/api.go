// Package v1 defines the access decision document returned by the gate.
//
// The document follows the AWS API Gateway custom authorizer response format.
// Gateways consume it verbatim, so field names and literal values must not
// change without coordinating with every gateway that calls the gate.
package v1

// Policy document literals.
const (
	// PolicyVersion is the IAM policy language version.
	PolicyVersion = "2012-10-17"
	// ActionInvoke is the only action the gate grants or denies.
	ActionInvoke = "execute-api:Invoke"
	// ResourceAll covers every resource behind the gateway.
	ResourceAll = "*"
	// AnonymousPrincipal is reported on every Deny. The caller's claimed
	// identity is never echoed back when verification fails.
	AnonymousPrincipal = "user"
)

// Effect is the outcome of a policy statement.
type Effect string

// Effects.
const (
	Allow Effect = "Allow"
	Deny  Effect = "Deny"
)

// Decision is returned to the gateway for every authorization request.
type Decision struct {
	// PrincipalID is the verified subject on Allow and AnonymousPrincipal on
	// Deny.
	PrincipalID string `json:"principalId"`

	// PolicyDocument contains a single statement covering ActionInvoke on
	// ResourceAll.
	PolicyDocument PolicyDocument `json:"policyDocument"`
}

// PolicyDocument is an IAM policy.
type PolicyDocument struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

// Statement is a single IAM policy statement.
type Statement struct {
	Action   string `json:"Action"`
	Effect   Effect `json:"Effect"`
	Resource string `json:"Resource"`
}

// NewAllow returns a decision allowing subject to invoke every resource.
func NewAllow(subject string) *Decision {
	return newDecision(subject, Allow)
}

// NewDeny returns a decision denying the anonymous principal.
func NewDeny() *Decision {
	return newDecision(AnonymousPrincipal, Deny)
}

func newDecision(principal string, effect Effect) *Decision {
	return &Decision{
		PrincipalID: principal,
		PolicyDocument: PolicyDocument{
			Version: PolicyVersion,
			Statement: []Statement{
				{
					Action:   ActionInvoke,
					Effect:   effect,
					Resource: ResourceAll,
				},
			},
		},
	}
}

// Effect returns the effect of the decision's statement. A decision without
// exactly one statement is treated as Deny.
func (d *Decision) Effect() Effect {
	if d == nil || len(d.PolicyDocument.Statement) != 1 {
		return Deny
	}
	return d.PolicyDocument.Statement[0].Effect
}

// Allowed reports whether the decision allows the request.
func (d *Decision) Allowed() bool {
	return d.Effect() == Allow
}
