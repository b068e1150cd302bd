package agent

import "github.com/yalochat/capforge/internal/engine"

// domainTemplate seeds entities, relationships, and rules for a known
// domain when the wizard supplied none of its own.
type domainTemplate struct {
	Entities      []engine.EntityDefinition
	Relationships []engine.RelationshipDefinition
	BusinessRules []engine.BusinessRule
}

func uuidKey() engine.FieldDefinition {
	return engine.FieldDefinition{Name: "ID", Type: engine.TypeUUID, Key: true}
}

var domainTemplates = map[engine.DomainType]domainTemplate{
	engine.DomainEcommerce: {
		Entities: []engine.EntityDefinition{
			{
				Name:        "Product",
				Description: "Product catalog item with pricing and inventory",
				Fields: []engine.FieldDefinition{
					uuidKey(),
					{Name: "productNumber", Type: engine.TypeString, Length: 20},
					{Name: "name", Type: engine.TypeString, Length: 100},
					{Name: "description", Type: engine.TypeLargeString, Nullable: true},
					{Name: "price", Type: engine.TypeDecimal},
					{Name: "currency", Type: engine.TypeString, Length: 3, Default: "'USD'"},
					{Name: "stock", Type: engine.TypeInteger, Default: "0"},
				},
				Aspects: []string{"cuid", "managed"},
			},
			{
				Name:        "Customer",
				Description: "Customer master data with contact info",
				Fields: []engine.FieldDefinition{
					uuidKey(),
					{Name: "customerNumber", Type: engine.TypeString, Length: 20},
					{Name: "name", Type: engine.TypeString, Length: 100},
					{Name: "email", Type: engine.TypeString, Length: 255},
					{Name: "country", Type: engine.TypeString, Length: 3, Nullable: true},
				},
				Aspects: []string{"cuid", "managed"},
			},
			{
				Name:        "Order",
				Description: "Customer sales order with status workflow",
				Fields: []engine.FieldDefinition{
					uuidKey(),
					{Name: "orderNumber", Type: engine.TypeString, Length: 20},
					{Name: "orderDate", Type: engine.TypeDateTime},
					{Name: "status", Type: engine.TypeString, Length: 20, Default: "'New'"},
					{Name: "totalAmount", Type: engine.TypeDecimal, Default: "0"},
				},
				Aspects: []string{"cuid", "managed"},
			},
			{
				Name:        "OrderItem",
				Description: "Order line item with quantity and pricing",
				Fields: []engine.FieldDefinition{
					uuidKey(),
					{Name: "itemNumber", Type: engine.TypeInteger},
					{Name: "quantity", Type: engine.TypeInteger, Default: "1"},
					{Name: "unitPrice", Type: engine.TypeDecimal},
				},
				Aspects: []string{"cuid"},
			},
		},
		Relationships: []engine.RelationshipDefinition{
			{Source: "Order", Target: "OrderItem", Type: "composition", Cardinality: "1:n", Name: "items"},
			{Source: "Order", Target: "Customer", Type: "association", Cardinality: "n:1"},
			{Source: "OrderItem", Target: "Product", Type: "association", Cardinality: "n:1"},
		},
		BusinessRules: []engine.BusinessRule{
			{Name: "PositiveQuantity", Entity: "OrderItem", RuleType: "validation",
				Description: "Order item quantity must be positive", Condition: "req.data.quantity > 0"},
			{Name: "OrderTotals", Entity: "Order", RuleType: "calculation",
				Description: "Recompute order totals from line items"},
		},
	},
	engine.DomainHR: {
		Entities: []engine.EntityDefinition{
			{
				Name:        "Employee",
				Description: "Employee master record",
				Fields: []engine.FieldDefinition{
					uuidKey(),
					{Name: "employeeNumber", Type: engine.TypeString, Length: 20},
					{Name: "firstName", Type: engine.TypeString, Length: 50},
					{Name: "lastName", Type: engine.TypeString, Length: 50},
					{Name: "email", Type: engine.TypeString, Length: 255},
					{Name: "hireDate", Type: engine.TypeDate},
					{Name: "active", Type: engine.TypeBoolean, Default: "true"},
				},
				Aspects: []string{"cuid", "managed"},
			},
			{
				Name:        "Department",
				Description: "Organizational unit",
				Fields: []engine.FieldDefinition{
					uuidKey(),
					{Name: "code", Type: engine.TypeString, Length: 10},
					{Name: "name", Type: engine.TypeString, Length: 100},
					{Name: "costCenter", Type: engine.TypeString, Length: 20, Nullable: true},
				},
				Aspects: []string{"cuid", "managed"},
			},
			{
				Name:        "LeaveRequest",
				Description: "Employee leave request with approval workflow",
				Fields: []engine.FieldDefinition{
					uuidKey(),
					{Name: "startDate", Type: engine.TypeDate},
					{Name: "endDate", Type: engine.TypeDate},
					{Name: "status", Type: engine.TypeString, Length: 20, Default: "'Submitted'"},
					{Name: "reason", Type: engine.TypeLargeString, Nullable: true},
				},
				Aspects: []string{"cuid", "managed"},
			},
		},
		Relationships: []engine.RelationshipDefinition{
			{Source: "Employee", Target: "Department", Type: "association", Cardinality: "n:1"},
			{Source: "LeaveRequest", Target: "Employee", Type: "association", Cardinality: "n:1"},
		},
		BusinessRules: []engine.BusinessRule{
			{Name: "LeaveDateOrder", Entity: "LeaveRequest", RuleType: "validation",
				Description: "Leave end date must not precede start date",
				Condition:   "req.data.endDate >= req.data.startDate"},
			{Name: "ApproveLeave", Entity: "LeaveRequest", RuleType: "authorization",
				Description: "Only managers approve leave requests", Action: "Manager"},
		},
	},
	engine.DomainInventory: {
		Entities: []engine.EntityDefinition{
			{
				Name:        "Material",
				Description: "Stock-managed material",
				Fields: []engine.FieldDefinition{
					uuidKey(),
					{Name: "materialNumber", Type: engine.TypeString, Length: 20},
					{Name: "name", Type: engine.TypeString, Length: 100},
					{Name: "unit", Type: engine.TypeString, Length: 5, Default: "'EA'"},
					{Name: "quantityOnHand", Type: engine.TypeInteger, Default: "0"},
					{Name: "reorderPoint", Type: engine.TypeInteger, Default: "10"},
				},
				Aspects: []string{"cuid", "managed"},
			},
			{
				Name:        "Warehouse",
				Description: "Physical storage location",
				Fields: []engine.FieldDefinition{
					uuidKey(),
					{Name: "code", Type: engine.TypeString, Length: 10},
					{Name: "name", Type: engine.TypeString, Length: 100},
					{Name: "city", Type: engine.TypeString, Length: 50, Nullable: true},
				},
				Aspects: []string{"cuid", "managed"},
			},
			{
				Name:        "StockMovement",
				Description: "Goods receipt or issue posting",
				Fields: []engine.FieldDefinition{
					uuidKey(),
					{Name: "movementType", Type: engine.TypeString, Length: 10},
					{Name: "quantity", Type: engine.TypeInteger},
					{Name: "postedAt", Type: engine.TypeDateTime},
				},
				Aspects: []string{"cuid"},
			},
		},
		Relationships: []engine.RelationshipDefinition{
			{Source: "StockMovement", Target: "Material", Type: "association", Cardinality: "n:1"},
			{Source: "StockMovement", Target: "Warehouse", Type: "association", Cardinality: "n:1"},
		},
		BusinessRules: []engine.BusinessRule{
			{Name: "NonZeroMovement", Entity: "StockMovement", RuleType: "validation",
				Description: "Stock movements must have a non-zero quantity",
				Condition:   "req.data.quantity !== 0"},
		},
	},
}
