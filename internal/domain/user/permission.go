package user

// Capability is a closed set of actions a role may perform on payroll.
type Capability string

const (
	CapabilityPayrollView           Capability = "payroll.view"
	CapabilityPayrollProcess        Capability = "payroll.process"
	CapabilityPayrollApprove        Capability = "payroll.approve"
	CapabilityPayrollPay            Capability = "payroll.pay"
	CapabilityPayrollSettingsManage Capability = "payroll.settings.manage"
)

// AllCapabilities lists every capability in a stable order.
var AllCapabilities = []Capability{
	CapabilityPayrollView,
	CapabilityPayrollProcess,
	CapabilityPayrollApprove,
	CapabilityPayrollPay,
	CapabilityPayrollSettingsManage,
}

// RoleCapabilities maps roles to their capabilities
var RoleCapabilities = map[Role][]Capability{
	RoleOwner: {
		// Owner has all capabilities
		CapabilityPayrollView,
		CapabilityPayrollProcess,
		CapabilityPayrollApprove,
		CapabilityPayrollPay,
		CapabilityPayrollSettingsManage,
	},
	RoleManager: {
		CapabilityPayrollView,
		CapabilityPayrollProcess,
		CapabilityPayrollApprove,
	},
	RoleEmployee: {},
	RolePending:  {},
}

// Valid reports whether c is one of the known capabilities.
func (c Capability) Valid() bool {
	for _, known := range AllCapabilities {
		if c == known {
			return true
		}
	}
	return false
}

// HasCapability checks if a role has a specific capability
func HasCapability(role Role, capability Capability) bool {
	capabilities, exists := RoleCapabilities[role]
	if !exists {
		return false
	}

	for _, c := range capabilities {
		if c == capability {
			return true
		}
	}

	return false
}
