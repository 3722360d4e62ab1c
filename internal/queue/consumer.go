package queue

import (
    "encoding/json"
    "errors"
    "fmt"
    "log"
    "os"
    "path/filepath"
    "strings"
    "time"

    amqp "github.com/rabbitmq/amqp091-go"
)

// StartReservationConsumer connects to RabbitMQ, declares the
// reservation.confirmed and reservation.cancelled queues (durable), and
// starts consuming both. Each message is appended to logs/reservation.log
// in a single-line, human-friendly format. The function runs a reconnect
// loop; it keeps running and logs any processing errors while rejecting
// the offending message so the server continues operating.
func StartReservationConsumer() error {
    url := brokerURL()

    backoff := time.Second
    for {
        conn, err := amqp.Dial(url)
        if err != nil {
            log.Printf("reservation-consumer: failed to dial broker: %v; retrying in %s", err, backoff)
            time.Sleep(backoff)
            if backoff < 30*time.Second {
                backoff *= 2
            }
            continue
        }
        backoff = time.Second // reset after successful connect

        if err := consumeLoop(conn); err != nil {
            log.Printf("reservation-consumer: consume loop ended: %v; reconnecting", err)
            time.Sleep(2 * time.Second)
            continue
        }
    }
}

func consumeLoop(conn *amqp.Connection) error {
    ch, err := conn.Channel()
    if err != nil {
        return fmt.Errorf("channel open: %w", err)
    }
    defer func() { _ = ch.Close() }()

    if err := ch.Qos(50, 0, false); err != nil {
        log.Printf("reservation-consumer: set QoS failed: %v", err)
    }

    for _, name := range []string{ConfirmedQueueName, CancelledQueueName} {
        if _, err := ch.QueueDeclare(name, true, false, false, false, nil); err != nil {
            return fmt.Errorf("queue declare %s: %w", name, err)
        }
    }

    confirmed, err := ch.Consume(ConfirmedQueueName, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume %s: %w", ConfirmedQueueName, err)
    }
    cancelled, err := ch.Consume(CancelledQueueName, "", false, false, false, false, nil)
    if err != nil {
        return fmt.Errorf("queue consume %s: %w", CancelledQueueName, err)
    }

    for {
        select {
        case d, ok := <-confirmed:
            if !ok {
                return errors.New("confirmed deliveries channel closed")
            }
            ackOrReject(d, handleConfirmed(d.Body))
        case d, ok := <-cancelled:
            if !ok {
                return errors.New("cancelled deliveries channel closed")
            }
            ackOrReject(d, handleCancelled(d.Body))
        }
    }
}

func ackOrReject(d amqp.Delivery, err error) {
    if err != nil {
        log.Printf("reservation-consumer: handle message failed: %v", err)
        _ = d.Nack(false, false) // reject, do not requeue to avoid tight loops
        return
    }
    _ = d.Ack(false)
}

func handleConfirmed(body []byte) error {
    var ev ReservationConfirmedEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    tables := "[]"
    if len(ev.TableLabels) > 0 {
        tables = fmt.Sprintf("[%s]", strings.Join(ev.TableLabels, ","))
    }
    line := fmt.Sprintf("[%s] Reservation confirmed | reservation_id=%d | user_id=%d | restaurant=\"%s\" | type=%s | meal=%s | date=%s | party=%d | total=%d cents | tables=%s\n",
        ev.ConfirmedAt, ev.ReservationID, ev.UserID, ev.RestaurantName, ev.ReservationType, ev.MealType, ev.ServiceDate, ev.PartySize, ev.TotalAmountCents, tables)
    return appendLine(line)
}

func handleCancelled(body []byte) error {
    var ev ReservationCancelledEvent
    if err := json.Unmarshal(body, &ev); err != nil {
        return fmt.Errorf("unmarshal: %w", err)
    }
    reason := ""
    if ev.NoRefundReason != "" {
        reason = fmt.Sprintf(" | no_refund_reason=%s", ev.NoRefundReason)
    }
    line := fmt.Sprintf("[%s] Reservation cancelled | reservation_id=%d | user_id=%d | window=%s | refund=%d cents (%d%%)%s | released_slots=%d | merged_tables=%d\n",
        ev.CancelledAt, ev.ReservationID, ev.UserID, ev.WindowType, ev.RefundAmountCents, ev.RefundPercentage, reason, len(ev.ReleasedSlotIDs), ev.MergedTableCount)
    return appendLine(line)
}

func appendLine(line string) error {
    if err := os.MkdirAll("logs", 0o755); err != nil {
        return fmt.Errorf("mkdir logs: %w", err)
    }
    fpath := filepath.Join("logs", "reservation.log")
    f, err := os.OpenFile(fpath, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
    if err != nil {
        return fmt.Errorf("open log file: %w", err)
    }
    defer f.Close()
    if _, err := f.WriteString(line); err != nil {
        return fmt.Errorf("write log: %w", err)
    }
    return nil
}
