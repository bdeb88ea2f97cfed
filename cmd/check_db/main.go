package main

import (
	"fmt"
	"log"

	"realtime-calculator/internal/calculator"
	"realtime-calculator/internal/config"
	"realtime-calculator/internal/database"
	"realtime-calculator/internal/model"
)

func main() {
	cfg := config.Load()

	// Database connection
	db, err := database.ConnectDB(cfg.Database)
	if err != nil {
		log.Fatal("Failed to connect to database:", err)
	}
	defer database.Close()

	fmt.Println("✅ Connected to database")
	fmt.Println()

	// Check if table exists
	exists := db.Migrator().HasTable(&model.CalculatorState{})
	fmt.Printf("📊 calculator_state table exists: %v\n", exists)
	fmt.Println()

	if !exists {
		fmt.Println("❌ calculator_state table does NOT exist!")
		fmt.Println("⚠️  Start the server once (AutoMigrate) or run migration")
		return
	}

	// Get column info
	columns, err := db.Migrator().ColumnTypes(&model.CalculatorState{})
	if err != nil {
		log.Fatal("Failed to get column info:", err)
	}
	fmt.Println("📋 Column Information:")
	for _, col := range columns {
		nullable, _ := col.Nullable()
		fmt.Printf("  - %s: %s (nullable: %v)\n", col.Name(), col.DatabaseTypeName(), nullable)
	}
	fmt.Println()

	// Get recent sessions
	var states []model.CalculatorState
	if err := db.Order("updated_at DESC").Limit(20).Find(&states).Error; err != nil {
		log.Fatal("Failed to get sessions:", err)
	}

	var total int64
	if err := db.Model(&model.CalculatorState{}).Count(&total).Error; err != nil {
		log.Fatal("Failed to count sessions:", err)
	}

	fmt.Printf("👥 Recent Sessions (%d of %d):\n", len(states), total)
	for _, s := range states {
		prev, op := "NULL", "NULL"
		if s.PreviousValue != nil {
			prev = *s.PreviousValue
		}
		if s.Operation != nil {
			op = s.Operation.String()
		}
		valid := "ok"
		if err := calculator.Validate(s); err != nil {
			valid = "INVALID: " + err.Error()
		}
		fmt.Printf("  - %s: display=%s previous=%s op=%s waiting=%v updated=%s [%s]\n",
			s.SessionID, s.Display, prev, op, s.WaitingForOperand, s.UpdatedAt.Format("2006-01-02 15:04:05"), valid)
	}
}
