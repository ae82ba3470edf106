// internal/services/progress_service_test.go
package services

import (
	"testing"
	"time"
)

func TestProgressTrackerLifecycle(t *testing.T) {
	svc := NewProgressService()

	tracker := svc.CreateTracker("ep-1")
	if tracker.Status != "running" {
		t.Errorf("初始状态 = %q, 期望 running", tracker.Status)
	}

	tracker.UpdateStage(30, "reconcile", "调和角色名册...")
	if tracker.Progress != 30 || tracker.Stage != "reconcile" {
		t.Errorf("阶段更新不符: progress=%d stage=%q", tracker.Progress, tracker.Stage)
	}

	tracker.Complete("完成")
	if tracker.Status != "completed" || tracker.Progress != 100 {
		t.Errorf("完成状态不符: status=%q progress=%d", tracker.Status, tracker.Progress)
	}

	select {
	case <-tracker.Done:
	default:
		t.Error("完成后Done通道应已关闭")
	}
}

// 在途跟踪器被复用，终止的跟踪器被新运行替换
func TestCreateTrackerReplacement(t *testing.T) {
	svc := NewProgressService()

	first := svc.CreateTracker("ep-1")
	if again := svc.CreateTracker("ep-1"); again != first {
		t.Error("在途跟踪器不应被替换")
	}

	first.Fail("解析失败")
	replacement := svc.CreateTracker("ep-1")
	if replacement == first {
		t.Error("终止的跟踪器应被新跟踪器替换")
	}
	if replacement.Status != "running" {
		t.Errorf("替换跟踪器的状态 = %q", replacement.Status)
	}
}

// 订阅者立刻收到当前状态，之后收到每次更新
func TestProgressSubscribe(t *testing.T) {
	svc := NewProgressService()
	tracker := svc.CreateTracker("ep-1")
	tracker.UpdateStage(10, "parse", "解析叙事文本...")

	ch := tracker.Subscribe()
	defer tracker.Unsubscribe(ch)

	select {
	case update := <-ch:
		if update.Progress != 10 || update.Stage != "parse" {
			t.Errorf("初始快照不符: %+v", update)
		}
	case <-time.After(time.Second):
		t.Fatal("订阅后应立刻收到当前状态")
	}

	tracker.UpdateStage(50, "illustrate", "生成场景插画...")
	select {
	case update := <-ch:
		if update.Progress != 50 || update.Stage != "illustrate" {
			t.Errorf("更新广播不符: %+v", update)
		}
	case <-time.After(time.Second):
		t.Fatal("更新应广播给订阅者")
	}

	tracker.Fail("超时")
	select {
	case update := <-ch:
		if update.Status != "failed" {
			t.Errorf("失败广播不符: %+v", update)
		}
	case <-time.After(time.Second):
		t.Fatal("失败应广播给订阅者")
	}
}

func TestCleanupCompletedTasks(t *testing.T) {
	svc := NewProgressService()

	done := svc.CreateTracker("ep-done")
	done.Complete("完成")
	svc.CreateTracker("ep-running")

	// 终止已久的跟踪器被清理，在途的保留
	time.Sleep(10 * time.Millisecond)
	svc.CleanupCompletedTasks(0)

	if _, ok := svc.GetTracker("ep-done"); ok {
		t.Error("终止的跟踪器应被清理")
	}
	if _, ok := svc.GetTracker("ep-running"); !ok {
		t.Error("在途跟踪器不应被清理")
	}
}
